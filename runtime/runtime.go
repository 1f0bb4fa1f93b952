package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/dyparser/discovery"
	"github.com/wippyai/dyparser/engine"
	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/input"
	"github.com/wippyai/dyparser/resource"
)

// DefaultPluginName is the plugin LoadDefault uses unless configured.
const DefaultPluginName = "default"

// Config is the immutable configuration of a Runtime.
type Config struct {
	// DefaultPlugin is the name LoadDefault resolves.
	DefaultPlugin string

	// PluginDir is searched before the per-user data directory.
	PluginDir string

	// CompilationCacheDir persists compiled wasm across processes.
	CompilationCacheDir string

	// InputEncoding forces a WHATWG encoding label for ParseReader and
	// ParseFile. Empty or "auto" detects.
	InputEncoding string

	// Timeout bounds each load and parse call. 0 disables the limit.
	Timeout time.Duration

	// MaxInputSize bounds the bytes read by ParseReader and ParseFile.
	MaxInputSize int64

	// MaxSections caps the live sections of one session.
	MaxSections int

	// MaxCallStack caps JavaScript recursion depth.
	MaxCallStack int

	// MemoryLimitPages caps wasm memory per instance (64KB pages).
	MemoryLimitPages uint32

	// EnableWASI satisfies wasi_snapshot_preview1 imports.
	EnableWASI bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		DefaultPlugin:    DefaultPluginName,
		InputEncoding:    input.Auto,
		Timeout:          30 * time.Second,
		MaxInputSize:     input.DefaultMaxSize,
		MaxSections:      1 << 16,
		MaxCallStack:     1024,
		MemoryLimitPages: 1024,
	}
}

// Recorder observes sessions. metrics.Metrics implements it.
type Recorder interface {
	host.Tracer
	resource.Observer
	ParseDone(plugin string, elapsed time.Duration, err error)
	SectionsDiscarded(n int)
}

// Runtime compiles plugins and owns the sandbox engines.
// It is safe for concurrent use.
type Runtime struct {
	wasm     *engine.WazeroEngine
	js       *engine.GojaEngine
	resolver discovery.Resolver
	recorder Recorder
	log      *zap.Logger
	cfg      Config
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for this runtime.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// WithResolver replaces plugin name resolution.
func WithResolver(res discovery.Resolver) Option {
	return func(r *Runtime) {
		r.resolver = res
	}
}

// WithRecorder reports every session to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Runtime) {
		r.recorder = rec
	}
}

// New creates a runtime.
func New(ctx context.Context, cfg Config, opts ...Option) (*Runtime, error) {
	if cfg.DefaultPlugin == "" {
		cfg.DefaultPlugin = DefaultPluginName
	}
	if cfg.MaxSections < 0 || cfg.MaxSections > resource.MaxSlots {
		return nil, errors.InvalidInput(errors.PhaseConfig, "max sections out of range")
	}
	if cfg.Timeout < 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "negative timeout")
	}

	r := &Runtime{
		cfg: cfg,
		log: Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = defaultResolver(cfg.PluginDir)
	}

	wasm, err := engine.NewWazeroEngine(ctx, &engine.Config{
		MemoryLimitPages:    cfg.MemoryLimitPages,
		CompilationCacheDir: cfg.CompilationCacheDir,
		EnableWASI:          cfg.EnableWASI,
	})
	if err != nil {
		return nil, err
	}
	r.wasm = wasm
	r.js = engine.NewGojaEngine(&engine.GojaConfig{MaxCallStack: cfg.MaxCallStack})
	return r, nil
}

func defaultResolver(pluginDir string) discovery.Resolver {
	dirs := discovery.Default().Resolver()
	if pluginDir == "" {
		return dirs
	}
	return discovery.Chain(discovery.Dir(pluginDir), dirs)
}

// Config returns the configuration the runtime was created with.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Close releases the engines. Plugins loaded by r must not be used after.
func (r *Runtime) Close(ctx context.Context) error {
	err := r.wasm.Close(ctx)
	if jerr := r.js.Close(ctx); err == nil {
		err = jerr
	}
	return err
}

// withTimeout applies the configured timeout to ctx.
func (r *Runtime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runtime) decoder() *input.Decoder {
	return input.NewDecoder(
		input.WithEncoding(r.cfg.InputEncoding),
		input.WithMaxSize(r.cfg.MaxInputSize),
	)
}
