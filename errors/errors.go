package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the async protocol the error occurred
type Phase string

const (
	PhaseSchedule Phase = "schedule" // poll loop and task lifecycle
	PhaseCallback Phase = "callback" // host-delivered event dispatch
	PhaseSubtask  Phase = "subtask"  // async-lowered import calls
	PhaseStream   Phase = "stream"   // stream and future transfer
	PhaseBuffer   Phase = "buffer"   // ABI staging and allocation
	PhaseLayout   Phase = "layout"   // parameter/result layout construction
	PhaseHost     Phase = "host"     // host-side intrinsic implementation
)

// Kind categorizes the error
type Kind string

const (
	KindProtocol       Kind = "protocol"
	KindUnsupported    Kind = "unsupported"
	KindAllocation     Kind = "allocation"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindDuplicate      Kind = "duplicate"
	KindNotInitialized Kind = "not_initialized"
	KindDeadlock       Kind = "deadlock"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
	Handle uint32
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

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %d)", e.Handle)
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Op sets the operation or intrinsic name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Handle sets the waitable, subtask or task handle involved
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// Fatal panics with the built error. Used for protocol desyncs that have no
// local repair.
func (b *Builder) Fatal() {
	panic(b.Build())
}

// Convenience constructors for common error patterns

// Protocol creates a protocol desync error
func Protocol(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// UnexpectedEvent creates an error for an event code the scheduler does not know
func UnexpectedEvent(code uint32) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindProtocol,
		Detail: fmt.Sprintf("unexpected event code %d", code),
		Value:  code,
	}
}

// MissingTask creates an error for a callback that finds no active task
func MissingTask(slot uint32) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindNotInitialized,
		Handle: slot,
		Detail: "no active task in context slot",
	}
}

// DuplicateWaitable creates an error for a waitable registered twice
func DuplicateWaitable(h uint32) *Error {
	return &Error{
		Phase:  PhaseSchedule,
		Kind:   KindDuplicate,
		Handle: h,
		Detail: "waitable already registered",
	}
}

// UnknownWaitable creates an error for an event naming an unregistered waitable
func UnknownWaitable(h uint32) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindNotFound,
		Handle: h,
		Detail: "event for unregistered waitable",
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
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
func NotFound(phase Phase, what string, h uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Handle: h,
		Detail: fmt.Sprintf("%s not found", what),
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

// FromPanic converts a recovered panic value into an error. Values that are
// already *Error are returned as-is.
func FromPanic(phase Phase, recovered any) *Error {
	switch v := recovered.(type) {
	case nil:
		return nil
	case *Error:
		return v
	case error:
		return Wrap(phase, KindProtocol, v, "guest panicked")
	default:
		return &Error{
			Phase:  phase,
			Kind:   KindProtocol,
			Detail: fmt.Sprintf("guest panicked: %v", v),
			Value:  v,
		}
	}
}
