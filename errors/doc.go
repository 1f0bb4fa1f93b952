// Package errors provides structured error types for dyparser.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending resource handle, the host operation that
// observed the violation, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseHost, errors.KindHandleInvalid).
//		Op("add-field").
//		Handle(7).
//		Detail("handle already transferred").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.HandleInvalid("release", h)
//	err := errors.PluginLoad("compile", cause)
//
// Match a category with the exported sentinels:
//
//	if errors.Is(err, errors.ErrHandleInvalid) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
