package runtime

import (
	"context"
	"io"
	"strings"

	"github.com/wippyai/dyparser/engine"
	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/section"
)

// Plugin is a compiled parser. It is immutable and safe for concurrent use;
// every parse gets its own Session.
type Plugin struct {
	rt       *Runtime
	artifact engine.Artifact
	name     string
	path     string
	kind     engine.Kind
	size     int
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return p.name }

// Path returns the file the plugin was loaded from, if any.
func (p *Plugin) Path() string { return p.path }

// Kind returns the engine that runs the plugin.
func (p *Plugin) Kind() engine.Kind { return p.kind }

// Size returns the size of the plugin binary or source in bytes.
func (p *Plugin) Size() int { return p.size }

// NewSession prepares one parse of the characters in rr.
func (p *Plugin) NewSession(rr io.RuneReader) *Session {
	return newSession(p, host.NewStream(rr))
}

// Parse parses text.
func (p *Plugin) Parse(ctx context.Context, text string) (*section.Section, error) {
	return p.NewSession(strings.NewReader(text)).Run(ctx)
}

// ParseReader decodes r to text and parses it.
func (p *Plugin) ParseReader(ctx context.Context, r io.Reader) (*section.Section, error) {
	res, err := p.rt.decoder().Read(r)
	if err != nil {
		return nil, withPlugin(err, p.name)
	}
	return p.Parse(ctx, res.Text)
}

// ParseFile reads the file at path in full and parses it.
func (p *Plugin) ParseFile(ctx context.Context, path string) (*section.Section, error) {
	res, err := p.rt.decoder().ReadFile(path)
	if err != nil {
		return nil, withPlugin(err, p.name)
	}
	return p.Parse(ctx, res.Text)
}

// Close releases the compiled artifact.
func (p *Plugin) Close(ctx context.Context) error {
	return p.artifact.Close(ctx)
}

// withPlugin names the plugin on a structured error that lacks one.
func withPlugin(err error, name string) error {
	var ee *errors.Error
	if errors.As(err, &ee) && ee.Plugin == "" {
		ee.Plugin = name
	}
	return err
}
