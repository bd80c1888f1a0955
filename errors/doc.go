// Package errors provides structured error types for the async scheduler.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the operation, the handle involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCallback, errors.KindProtocol).
//		Op("waitable-set-wait").
//		Handle(h).
//		Detail("event %d for idle waitable", code).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnexpectedEvent(code)
//	err := errors.DuplicateWaitable(h)
//
// Protocol desyncs are not returned: the scheduler panics with an *Error
// because a corrupted host/guest state has no local repair. FromPanic turns
// such a recovered value back into an error at host-side boundaries.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
