package engine

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

// frame carries the callbacks of the running parse into host functions,
// which are shared by every instance of the engine.
type frame struct {
	cb    host.Callbacks
	fault error
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// abort is the panic value used to unwind the guest after a violation.
type abort struct {
	err error
}

func (a abort) Error() string { return a.err.Error() }
func (a abort) Unwrap() error { return a.err }

// fail records err on the frame and unwinds the guest. It does not return.
func (f *frame) fail(err error) {
	if f.fault == nil {
		f.fault = err
	}
	panic(abort{err: err})
}

// callbacks returns the frame of ctx or unwinds the guest if there is none.
func callbacks(ctx context.Context) *frame {
	f := frameFrom(ctx)
	if f == nil || f.cb == nil {
		panic(abort{err: errors.SandboxFault("host call outside of a parse", nil)})
	}
	return f
}

// readString reads a UTF-8 string from the calling module's memory.
func (f *frame) readString(mod api.Module, op host.Op, ptr, length uint32) string {
	mem := mod.Memory()
	if mem == nil {
		f.fail(errors.New(errors.PhaseHost, errors.KindSandboxFault).
			Op(op.String()).
			Detail("plugin has no memory").
			Build())
	}
	b, ok := mem.Read(ptr, length)
	if !ok {
		f.fail(errors.New(errors.PhaseHost, errors.KindSandboxFault).
			Op(op.String()).
			Detail("string [%d, +%d) is out of bounds of %d bytes", ptr, length, mem.Size()).
			Build())
	}
	if !utf8.Valid(b) {
		f.fail(errors.New(errors.PhaseHost, errors.KindSandboxFault).
			Op(op.String()).
			Detail("string at %d is not valid UTF-8", ptr).
			Build())
	}
	return string(b)
}

func hostNext(ctx context.Context, _ api.Module, stack []uint64) {
	f := callbacks(ctx)
	c, ok := f.cb.NextChar()
	if !ok {
		stack[0] = api.EncodeI32(host.EndOfStream)
		return
	}
	stack[0] = api.EncodeI32(int32(c))
}

func hostNewSection(ctx context.Context, _ api.Module, stack []uint64) {
	f := callbacks(ctx)
	h, err := f.cb.NewSection()
	if err != nil {
		f.fail(err)
	}
	stack[0] = api.EncodeU32(uint32(h))
}

func hostAddField(ctx context.Context, mod api.Module, stack []uint64) {
	f := callbacks(ctx)
	self := resource.Handle(api.DecodeU32(stack[0]))
	key := f.readString(mod, host.OpAddField, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	value := f.readString(mod, host.OpAddField, api.DecodeU32(stack[3]), api.DecodeU32(stack[4]))
	if err := f.cb.AddField(self, key, value); err != nil {
		f.fail(err)
	}
}

func hostAddSection(ctx context.Context, mod api.Module, stack []uint64) {
	f := callbacks(ctx)
	self := resource.Handle(api.DecodeU32(stack[0]))
	key := f.readString(mod, host.OpAddSection, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	child := resource.Handle(api.DecodeU32(stack[3]))
	if err := f.cb.AddSection(self, key, child); err != nil {
		f.fail(err)
	}
}

func hostRelease(ctx context.Context, _ api.Module, stack []uint64) {
	f := callbacks(ctx)
	if err := f.cb.Release(resource.Handle(api.DecodeU32(stack[0]))); err != nil {
		f.fail(err)
	}
}

type hostFunc struct {
	op     host.Op
	fn     api.GoModuleFunc
	params []string
}

var hostFuncs = []hostFunc{
	{op: host.OpNextChar, fn: hostNext},
	{op: host.OpNewSection, fn: hostNewSection},
	{op: host.OpAddField, fn: hostAddField, params: []string{"self", "key_ptr", "key_len", "value_ptr", "value_len"}},
	{op: host.OpAddSection, fn: hostAddSection, params: []string{"self", "key_ptr", "key_len", "child"}},
	{op: host.OpRelease, fn: hostRelease, params: []string{"self"}},
}

// instantiateHost registers host.ModuleName on the engine runtime.
func (e *WazeroEngine) instantiateHost(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(host.ModuleName)
	for _, hf := range hostFuncs {
		sig := hostSignatures[hf.op.ImportName()]
		fb := builder.NewFunctionBuilder().
			WithGoModuleFunction(hf.fn, sig.params, sig.results).
			WithName(hf.op.String())
		if len(hf.params) > 0 {
			fb = fb.WithParameterNames(hf.params...)
		}
		builder = fb.Export(hf.op.ImportName())
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Instantiation(fmt.Sprintf("instantiate host module %s", host.ModuleName), err)
	}
	return nil
}
