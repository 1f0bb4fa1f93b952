package dyparser

import (
	"context"

	"github.com/wippyai/dyparser/runtime"
	"github.com/wippyai/dyparser/section"
)

type options struct {
	plugin  string
	rtOpts  []runtime.Option
	cfg     runtime.Config
	haveCfg bool
}

// Option configures ParseConfig.
type Option func(*options)

// WithPlugin selects the plugin by name instead of the default plugin.
func WithPlugin(name string) Option {
	return func(o *options) {
		o.plugin = name
	}
}

// WithConfig replaces runtime.DefaultConfig().
func WithConfig(cfg runtime.Config) Option {
	return func(o *options) {
		o.cfg = cfg
		o.haveCfg = true
	}
}

// WithRuntimeOptions passes options through to runtime.New.
func WithRuntimeOptions(opts ...runtime.Option) Option {
	return func(o *options) {
		o.rtOpts = append(o.rtOpts, opts...)
	}
}

// ParseConfig parses the configuration file at path with a plugin located
// through the plugin search path. It creates and discards a runtime; use
// the runtime package directly to parse many files.
func ParseConfig(ctx context.Context, path string, opts ...Option) (*section.Section, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.haveCfg {
		o.cfg = runtime.DefaultConfig()
	}

	rt, err := runtime.New(ctx, o.cfg, o.rtOpts...)
	if err != nil {
		return nil, err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	var p *runtime.Plugin
	if o.plugin != "" {
		p, err = rt.LoadPlugin(ctx, o.plugin)
	} else {
		p, err = rt.LoadDefault(ctx)
	}
	if err != nil {
		return nil, err
	}
	defer p.Close(context.WithoutCancel(ctx))

	return p.ParseFile(ctx, path)
}
