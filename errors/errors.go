package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // plugin reading and compilation
	PhaseInstantiate Phase = "instantiate" // contract check and sandbox instantiation
	PhaseHost        Phase = "host"        // host callbacks invoked by the sandbox
	PhaseRuntime     Phase = "runtime"     // sandbox execution
	PhaseFinalize    Phase = "finalize"    // taking the root out of the table
	PhaseInput       Phase = "input"       // reading and decoding configuration text
	PhaseResolve     Phase = "resolve"     // plugin name resolution
	PhaseConfig      Phase = "config"      // host configuration
)

// Kind categorizes the error
type Kind string

const (
	KindPluginLoad    Kind = "plugin_load"
	KindInstantiation Kind = "instantiation"
	KindHandleInvalid Kind = "handle_invalid"
	KindSelfAttach    Kind = "self_attach"
	KindSandboxFault  Kind = "sandbox_fault"
	KindTableFull     Kind = "table_full"
	KindInvalidInput  Kind = "invalid_input"
	KindNotFound      Kind = "not_found"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrPluginLoad    = &Error{Kind: KindPluginLoad}
	ErrInstantiation = &Error{Kind: KindInstantiation}
	ErrHandleInvalid = &Error{Kind: KindHandleInvalid}
	ErrSelfAttach    = &Error{Kind: KindSelfAttach}
	ErrSandboxFault  = &Error{Kind: KindSandboxFault}
	ErrTableFull     = &Error{Kind: KindTableFull}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

// Error is the structured error type used throughout dyparser
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Op        string
	Plugin    string
	Detail    string
	Handle    uint32
	HasHandle bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.HasHandle {
		fmt.Fprintf(&b, " (handle %#x)", e.Handle)
	}

	if e.Plugin != "" {
		b.WriteString(" plugin ")
		b.WriteString(e.Plugin)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the host operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Handle sets the offending handle
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	b.err.HasHandle = true
	return b
}

// Plugin sets the plugin name
func (b *Builder) Plugin(name string) *Builder {
	b.err.Plugin = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// PluginLoad creates a plugin loading error
func PluginLoad(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindPluginLoad,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates a contract or instantiation error
func Instantiation(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: detail,
		Cause:  cause,
	}
}

// HandleInvalid creates an error for a stale, transferred, released or forged handle
func HandleInvalid(op string, h uint32) *Error {
	return &Error{
		Phase:     PhaseHost,
		Kind:      KindHandleInvalid,
		Op:        op,
		Handle:    h,
		HasHandle: true,
		Detail:    "handle is not live in the resource table",
	}
}

// SelfAttach creates an error for attaching a section to itself
func SelfAttach(h uint32) *Error {
	return &Error{
		Phase:     PhaseHost,
		Kind:      KindSelfAttach,
		Op:        "add-section",
		Handle:    h,
		HasHandle: true,
		Detail:    "section cannot be attached to itself",
	}
}

// TableFull creates an allocation failure error
func TableFull(limit int, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindTableFull,
		Op:     "new-section",
		Detail: fmt.Sprintf("resource table limit of %d sections reached", limit),
		Cause:  cause,
	}
}

// SandboxFault creates an error for abnormal sandbox termination
func SandboxFault(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindSandboxFault,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap is errors.Unwrap from the standard library.
func Unwrap(err error) error { return stderrors.Unwrap(err) }
