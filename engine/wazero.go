package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

// Config holds configuration for the wazero engine.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CompilationCacheDir persists compiled plugins across processes.
	// Empty means an in-memory cache shared by this engine only.
	CompilationCacheDir string

	// EnableWASI satisfies wasi_snapshot_preview1 imports.
	EnableWASI bool
}

// WazeroEngine implements Engine for WebAssembly core modules.
type WazeroEngine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	log      *zap.Logger
	cfg      Config
	wasiMu   sync.Mutex
	wasiDone bool
}

var _ Engine = (*WazeroEngine)(nil)

// NewWazeroEngine creates an engine and registers the host module on it.
func NewWazeroEngine(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}

	var cache wazero.CompilationCache
	if c.CompilationCacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(c.CompilationCacheDir)
		if err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("compilation cache %s", c.CompilationCacheDir).
				Cause(err).
				Build()
		}
	} else {
		cache = wazero.NewCompilationCache()
	}
	runtimeCfg = runtimeCfg.WithCompilationCache(cache)

	e := &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:   cache,
		log:     Logger(),
		cfg:     c,
	}
	if err := e.instantiateHost(ctx); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}
	return e, nil
}

// Kind returns KindWasm.
func (e *WazeroEngine) Kind() Kind { return KindWasm }

// Close closes every module and the compilation cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// ensureWASI instantiates WASI once per engine.
func (e *WazeroEngine) ensureWASI(ctx context.Context) error {
	e.wasiMu.Lock()
	defer e.wasiMu.Unlock()

	if e.wasiDone || e.runtime.Module(wasiModuleName) != nil {
		e.wasiDone = true
		return nil
	}
	if _, err := instantiateWASI(ctx, e.runtime); err != nil {
		return errors.Instantiation("instantiate WASI", err)
	}
	e.wasiDone = true
	return nil
}

// Compile compiles a wasm binary and checks its imports and exports.
func (e *WazeroEngine) Compile(ctx context.Context, name string, src []byte) (Artifact, error) {
	compiled, err := e.runtime.CompileModule(ctx, src)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPluginLoad).
			Plugin(name).
			Detail("compile wasm module").
			Cause(err).
			Build()
	}

	c, err := checkContract(compiled, e.cfg.EnableWASI)
	if err != nil {
		_ = compiled.Close(ctx)
		if ee, ok := err.(*errors.Error); ok {
			ee.Plugin = name
		}
		return nil, err
	}

	e.log.Debug("compiled wasm plugin",
		zap.String("plugin", name),
		zap.String("entry", c.entry),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Bool("wasi", c.wasi))

	return &wazeroArtifact{
		engine:   e,
		compiled: compiled,
		name:     name,
		contract: c,
	}, nil
}

type contract struct {
	entry string
	wasi  bool
}

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

var hostSignatures = map[string]signature{
	host.OpNextChar.ImportName():   {nil, i32s(1)},
	host.OpNewSection.ImportName(): {nil, i32s(1)},
	host.OpAddField.ImportName():   {i32s(5), nil},
	host.OpAddSection.ImportName(): {i32s(4), nil},
	host.OpRelease.ImportName():    {i32s(1), nil},
}

var entrySignature = signature{nil, i32s(1)}

func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(s.params, def.ParamTypes()) && slices.Equal(s.results, def.ResultTypes())
}

// checkContract verifies compiled against the plugin ABI.
func checkContract(compiled wazero.CompiledModule, allowWASI bool) (contract, error) {
	var c contract
	needsMemory := false

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		switch module {
		case host.ModuleName:
			sig, ok := hostSignatures[name]
			if !ok {
				return c, errors.Instantiation(fmt.Sprintf("unknown host import %q", name), nil)
			}
			if !sig.matches(def) {
				return c, errors.Instantiation(fmt.Sprintf("host import %q has wrong signature", name), nil)
			}
			if len(sig.params) > 2 {
				needsMemory = true
			}
		case wasiModuleName:
			if !allowWASI {
				return c, errors.Instantiation(fmt.Sprintf("WASI import %q but WASI is disabled", name), nil)
			}
			c.wasi = true
		default:
			return c, errors.Instantiation(fmt.Sprintf("unsupported import %s.%s", module, name), nil)
		}
	}

	if n := len(compiled.ImportedMemories()); n > 0 {
		return c, errors.Instantiation("plugins must not import memory", nil)
	}

	exports := compiled.ExportedFunctions()
	for _, candidate := range []string{host.ExportParse, host.ExportParseStream} {
		if def, ok := exports[candidate]; ok {
			if !entrySignature.matches(def) {
				return c, errors.Instantiation(fmt.Sprintf("export %q must have type () -> i32", candidate), nil)
			}
			c.entry = candidate
			break
		}
	}
	if c.entry == "" {
		return c, errors.Instantiation(fmt.Sprintf("missing export %q", host.ExportParse), nil)
	}

	if needsMemory {
		if _, ok := compiled.ExportedMemories()[host.ExportMemory]; !ok {
			return c, errors.Instantiation(fmt.Sprintf("missing export %q", host.ExportMemory), nil)
		}
	}
	return c, nil
}

// wazeroArtifact is a compiled wasm plugin.
type wazeroArtifact struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
	name     string
	contract contract
}

func (a *wazeroArtifact) Name() string { return a.name }
func (a *wazeroArtifact) Kind() Kind   { return KindWasm }

func (a *wazeroArtifact) Close(ctx context.Context) error {
	return a.compiled.Close(ctx)
}

// Instantiate creates an anonymous module instance bound to cb.
func (a *wazeroArtifact) Instantiate(ctx context.Context, cb host.Callbacks) (Instance, error) {
	if a.contract.wasi {
		if err := a.engine.ensureWASI(ctx); err != nil {
			return nil, err
		}
	}

	log := a.engine.log.With(zap.String("plugin", a.name))
	stdout := newLineWriter(log, "stdout")
	stderr := newLineWriter(log, "stderr")

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions("_initialize").
		WithStdout(stdout).
		WithStderr(stderr)

	// _initialize runs against the load-time callbacks; cb serves Parse only.
	f := &frame{cb: loadTimeCallbacks{}}
	mod, err := a.engine.runtime.InstantiateModule(withFrame(ctx, f), a.compiled, modConfig)
	if f.fault != nil {
		if mod != nil {
			_ = mod.Close(ctx)
		}
		return nil, f.fault
	}
	if err != nil {
		return nil, errors.Instantiation("instantiate wasm module", err)
	}

	return &wazeroInstance{
		module: mod,
		entry:  mod.ExportedFunction(a.contract.entry),
		cb:     cb,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// wazeroInstance is one module instance bound to one callback set.
type wazeroInstance struct {
	module api.Module
	entry  api.Function
	cb     host.Callbacks
	stdout *lineWriter
	stderr *lineWriter
}

func (i *wazeroInstance) Parse(ctx context.Context) (resource.Handle, error) {
	f := &frame{cb: i.cb}
	results, err := i.entry.Call(withFrame(ctx, f))
	i.stdout.Flush()
	i.stderr.Flush()

	if f.fault != nil {
		return 0, f.fault
	}
	if err != nil {
		return 0, classifyTrap(ctx, err)
	}
	return resource.Handle(api.DecodeU32(results[0])), nil
}

func (i *wazeroInstance) Close(ctx context.Context) error {
	if i.module == nil {
		return nil
	}
	err := i.module.Close(ctx)
	i.module = nil
	i.entry = nil
	return err
}

// classifyTrap maps a failed guest call to a sandbox fault.
func classifyTrap(ctx context.Context, err error) error {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded:
			return errors.SandboxFault("execution timeout exceeded", context.DeadlineExceeded)
		case sys.ExitCodeContextCanceled:
			return errors.SandboxFault("execution canceled", context.Canceled)
		default:
			return errors.SandboxFault(fmt.Sprintf("plugin exited with code %d", exit.ExitCode()), err)
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		return errors.SandboxFault("execution interrupted", cerr)
	}
	return errors.SandboxFault("plugin trapped", err)
}
