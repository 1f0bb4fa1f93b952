package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

// GojaConfig holds configuration for the JavaScript engine.
type GojaConfig struct {
	// MaxCallStack limits JS recursion depth. 0 means the goja default.
	MaxCallStack int
}

// GojaEngine implements Engine for JavaScript plugins.
type GojaEngine struct {
	log *zap.Logger
	cfg GojaConfig
}

var _ Engine = (*GojaEngine)(nil)

// NewGojaEngine creates a JavaScript engine.
func NewGojaEngine(cfg *GojaConfig) *GojaEngine {
	e := &GojaEngine{log: Logger()}
	if cfg != nil {
		e.cfg = *cfg
	}
	return e
}

// Kind returns KindJS.
func (e *GojaEngine) Kind() Kind { return KindJS }

// Close is a no-op; every VM is owned by its instance.
func (e *GojaEngine) Close(context.Context) error { return nil }

// Compile parses the script and checks that it defines parse().
// The check evaluates the script once in a VM whose callbacks reject every
// section operation.
func (e *GojaEngine) Compile(ctx context.Context, name string, src []byte) (Artifact, error) {
	if !utf8.Valid(src) {
		return nil, errors.New(errors.PhaseLoad, errors.KindPluginLoad).
			Plugin(name).
			Detail("script is not valid UTF-8").
			Build()
	}
	prg, err := goja.Compile(name, string(src), true)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPluginLoad).
			Plugin(name).
			Detail("compile script").
			Cause(err).
			Build()
	}

	a := &gojaArtifact{engine: e, program: prg, name: name}
	inst, err := a.Instantiate(ctx, loadTimeCallbacks{})
	if err != nil {
		if ee, ok := err.(*errors.Error); ok && ee.Plugin == "" {
			ee.Plugin = name
		}
		return nil, err
	}
	_ = inst.Close(ctx)

	e.log.Debug("compiled js plugin", zap.String("plugin", name))
	return a, nil
}

// gojaArtifact is a compiled script. goja programs can be run by many
// runtimes concurrently.
type gojaArtifact struct {
	engine  *GojaEngine
	program *goja.Program
	name    string
}

func (a *gojaArtifact) Name() string                { return a.name }
func (a *gojaArtifact) Kind() Kind                  { return KindJS }
func (a *gojaArtifact) Close(context.Context) error { return nil }

// Instantiate runs the script top level in a fresh VM. Top-level code sees
// an empty input and may not build sections; cb is bound for Parse only.
func (a *gojaArtifact) Instantiate(ctx context.Context, cb host.Callbacks) (Instance, error) {
	i := &gojaInstance{
		vm:  goja.New(),
		cb:  loadTimeCallbacks{},
		log: a.engine.log.With(zap.String("plugin", a.name)),
	}
	if n := a.engine.cfg.MaxCallStack; n > 0 {
		i.vm.SetMaxCallStackSize(n)
	}
	if err := i.setupGlobals(); err != nil {
		return nil, errors.Instantiation("install globals", err)
	}

	_, err := i.guard(ctx, func() (goja.Value, error) {
		return i.vm.RunProgram(a.program)
	})
	if i.fault != nil {
		return nil, i.fault
	}
	if err != nil {
		return nil, errors.Instantiation("evaluate script", i.classify(ctx, err))
	}

	fn, ok := goja.AssertFunction(i.vm.Get(host.ExportParse))
	if !ok {
		return nil, errors.Instantiation(fmt.Sprintf("script does not define function %s()", host.ExportParse), nil)
	}
	i.parse = fn
	i.cb = cb
	return i, nil
}

// gojaInstance is one VM bound to one callback set.
type gojaInstance struct {
	vm    *goja.Runtime
	parse goja.Callable
	cb    host.Callbacks
	fault error
	log   *zap.Logger
}

func (i *gojaInstance) Parse(ctx context.Context) (resource.Handle, error) {
	v, err := i.guard(ctx, func() (goja.Value, error) {
		return i.parse(goja.Undefined())
	})
	if i.fault != nil {
		return 0, i.fault
	}
	if err != nil {
		return 0, i.classify(ctx, err)
	}

	h, ok := toHandle(v)
	if !ok {
		return 0, errors.SandboxFault(fmt.Sprintf("parse returned %s, not a section handle", v), nil)
	}
	return h, nil
}

func (i *gojaInstance) Close(context.Context) error {
	i.vm = nil
	i.parse = nil
	return nil
}

// guard runs fn while a watcher interrupts the VM once ctx is done.
func (i *gojaInstance) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	defer close(stop)

	vm := i.vm
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	return fn()
}

// classify maps a failed script run to a sandbox fault.
func (i *gojaInstance) classify(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			switch {
			case errors.Is(cause, context.DeadlineExceeded):
				return errors.SandboxFault("execution timeout exceeded", cause)
			case errors.Is(cause, context.Canceled):
				return errors.SandboxFault("execution canceled", cause)
			}
		}
		return errors.SandboxFault("execution interrupted", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.SandboxFault("execution interrupted", err)
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return errors.SandboxFault("uncaught exception", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return errors.SandboxFault("execution interrupted", cerr)
	}
	return errors.SandboxFault("script failed", err)
}

// fail records err, stops the VM and throws. The interrupt fires on the next
// instruction, so a script cannot catch its way past a violation.
func (i *gojaInstance) fail(err error) {
	if i.fault == nil {
		i.fault = err
	}
	i.vm.Interrupt(abort{err: err})
	panic(i.vm.NewGoError(err))
}

func (i *gojaInstance) setupGlobals() error {
	vm := i.vm
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := vm.Set(name, func(goja.FunctionCall) goja.Value { return goja.Undefined() }); err != nil {
			return err
		}
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, i.consoleFunc(level)); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set("next", i.next); err != nil {
		return err
	}

	sec := vm.NewObject()
	bindings := map[string]func(goja.FunctionCall) goja.Value{
		"new":        i.newSection,
		"addField":   i.addField,
		"addSection": i.addSection,
		"drop":       i.release,
	}
	for name, fn := range bindings {
		if err := sec.Set(name, fn); err != nil {
			return err
		}
	}
	return vm.Set("section", sec)
}

func (i *gojaInstance) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for n, arg := range call.Arguments {
			parts[n] = arg.String()
		}
		i.log.Debug("plugin console", zap.String("level", level), zap.String("message", strings.Join(parts, " ")))
		return goja.Undefined()
	}
}

func (i *gojaInstance) next(goja.FunctionCall) goja.Value {
	c, ok := i.cb.NextChar()
	if !ok {
		return goja.Null()
	}
	return i.vm.ToValue(string(c))
}

func (i *gojaInstance) newSection(goja.FunctionCall) goja.Value {
	h, err := i.cb.NewSection()
	if err != nil {
		i.fail(err)
	}
	return i.vm.ToValue(uint32(h))
}

func (i *gojaInstance) addField(call goja.FunctionCall) goja.Value {
	h := i.handleArg(call, 0, host.OpAddField)
	key := i.stringArg(call, 1, host.OpAddField)
	value := i.stringArg(call, 2, host.OpAddField)
	if err := i.cb.AddField(h, key, value); err != nil {
		i.fail(err)
	}
	return goja.Undefined()
}

func (i *gojaInstance) addSection(call goja.FunctionCall) goja.Value {
	parent := i.handleArg(call, 0, host.OpAddSection)
	key := i.stringArg(call, 1, host.OpAddSection)
	child := i.handleArg(call, 2, host.OpAddSection)
	if err := i.cb.AddSection(parent, key, child); err != nil {
		i.fail(err)
	}
	return goja.Undefined()
}

func (i *gojaInstance) release(call goja.FunctionCall) goja.Value {
	h := i.handleArg(call, 0, host.OpRelease)
	if err := i.cb.Release(h); err != nil {
		i.fail(err)
	}
	return goja.Undefined()
}

// handleArg returns argument n, which must be a number usable as a handle.
func (i *gojaInstance) handleArg(call goja.FunctionCall, n int, op host.Op) resource.Handle {
	h, ok := toHandle(call.Argument(n))
	if !ok {
		i.fail(badArgument(op, n, "a section handle", call.Argument(n)))
	}
	return h
}

// stringArg returns argument n, which must be a string primitive.
func (i *gojaInstance) stringArg(call goja.FunctionCall, n int, op host.Op) string {
	s, ok := call.Argument(n).Export().(string)
	if !ok {
		i.fail(badArgument(op, n, "a string", call.Argument(n)))
	}
	return s
}

func badArgument(op host.Op, n int, want string, got goja.Value) error {
	return errors.New(errors.PhaseHost, errors.KindSandboxFault).
		Op(op.String()).
		Detail("argument %d is %s, not %s", n, describe(got), want).
		Build()
}

func describe(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if t := v.ExportType(); t != nil {
		return t.String()
	}
	return v.String()
}

// toHandle accepts integral numbers in the handle range. Strings and other
// values that would coerce to a number are rejected.
func toHandle(v goja.Value) (resource.Handle, bool) {
	if v == nil {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		if n < 0 || n > math.MaxUint32 {
			return 0, false
		}
		return resource.Handle(uint32(n)), true
	case float64:
		if n != math.Trunc(n) || n < 0 || n > math.MaxUint32 {
			return 0, false
		}
		return resource.Handle(uint32(n)), true
	}
	return 0, false
}
