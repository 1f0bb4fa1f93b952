package engine

import (
	"context"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

// Kind names a plugin format.
type Kind string

const (
	KindWasm Kind = "wasm"
	KindJS   Kind = "js"
)

// Engine compiles plugin sources.
type Engine interface {
	// Compile decodes src and checks it against the plugin contract.
	// It binds no callbacks and creates no resource table.
	Compile(ctx context.Context, name string, src []byte) (Artifact, error)
	Kind() Kind
	Close(ctx context.Context) error
}

// Artifact is a compiled plugin. It is immutable and safe for concurrent use.
type Artifact interface {
	Name() string
	Kind() Kind
	// Instantiate creates a sandbox whose callbacks go to cb.
	Instantiate(ctx context.Context, cb host.Callbacks) (Instance, error)
	Close(ctx context.Context) error
}

// Instance is one sandbox bound to one callback set. It is not safe for
// concurrent use and runs Parse at most once.
type Instance interface {
	// Parse runs the plugin entry point and returns the handle it produced.
	// A protocol violation is returned as reported by the callbacks.
	Parse(ctx context.Context) (resource.Handle, error)
	Close(ctx context.Context) error
}

// loadTimeCallbacks are bound while a plugin initializes: during the
// contract check in Compile and while Instantiate runs script top-level
// code or a wasm _initialize. Input reads as empty and section calls fail.
type loadTimeCallbacks struct{}

func (loadTimeCallbacks) NextChar() (rune, bool) { return 0, false }

func (loadTimeCallbacks) NewSection() (resource.Handle, error) {
	return 0, errLoadTime(host.OpNewSection)
}

func (loadTimeCallbacks) AddField(resource.Handle, string, string) error {
	return errLoadTime(host.OpAddField)
}

func (loadTimeCallbacks) AddSection(resource.Handle, string, resource.Handle) error {
	return errLoadTime(host.OpAddSection)
}

func (loadTimeCallbacks) Release(resource.Handle) error {
	return errLoadTime(host.OpRelease)
}

func (loadTimeCallbacks) Fault() error { return nil }

func errLoadTime(op host.Op) error {
	return errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
		Op(op.String()).
		Detail("section calls are not allowed while the plugin loads").
		Build()
}
