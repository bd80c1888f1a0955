package abi

import (
	"fmt"
	"math"
)

// Handle is a host-minted integer naming a waitable, waitable set, subtask
// or event. Handle 0 is never valid.
type Handle uint32

// EventCode is the first word of a host-delivered event.
type EventCode uint32

const (
	EventNone         EventCode = 0
	EventCallStarted  EventCode = 2
	EventCallReturned EventCode = 3
	EventStreamRead   EventCode = 5
	EventStreamWrite  EventCode = 6
	EventFutureRead   EventCode = 7
	EventFutureWrite  EventCode = 8
)

// Valid reports whether c is part of the event vocabulary.
func (c EventCode) Valid() bool {
	switch c {
	case EventNone, EventCallStarted, EventCallReturned,
		EventStreamRead, EventStreamWrite, EventFutureRead, EventFutureWrite:
		return true
	}
	return false
}

// IsCall reports whether c reports subtask progress.
func (c EventCode) IsCall() bool {
	return c == EventCallStarted || c == EventCallReturned
}

// IsTransfer reports whether c reports stream or future progress.
func (c EventCode) IsTransfer() bool {
	return c >= EventStreamRead && c <= EventFutureWrite
}

func (c EventCode) String() string {
	switch c {
	case EventNone:
		return "NONE"
	case EventCallStarted:
		return "CALL_STARTED"
	case EventCallReturned:
		return "CALL_RETURNED"
	case EventStreamRead:
		return "STREAM_READ"
	case EventStreamWrite:
		return "STREAM_WRITE"
	case EventFutureRead:
		return "FUTURE_READ"
	case EventFutureWrite:
		return "FUTURE_WRITE"
	default:
		return fmt.Sprintf("EVENT(%d)", uint32(c))
	}
}

// CallStatus is the progress of an async-lowered import call.
type CallStatus uint32

const (
	StatusStarting CallStatus = 1
	StatusStarted  CallStatus = 2
	StatusReturned CallStatus = 3
)

func (s CallStatus) String() string {
	switch s {
	case StatusStarting:
		return "STARTING"
	case StatusStarted:
		return "STARTED"
	case StatusReturned:
		return "RETURNED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint32(s))
	}
}

// StatusForEvent maps a call event to the status it reports.
func StatusForEvent(c EventCode) (CallStatus, bool) {
	switch c {
	case EventCallStarted:
		return StatusStarted, true
	case EventCallReturned:
		return StatusReturned, true
	}
	return 0, false
}

const statusBits = 4
const statusMask = 1<<statusBits - 1

// PackCall packs a call status and subtask handle into the word returned by
// an async-lowered import.
func PackCall(s CallStatus, h Handle) uint32 {
	return uint32(s)&statusMask | uint32(h)<<statusBits
}

// UnpackCall splits the word returned by an async-lowered import. The
// handle is 0 when the call already completed.
func UnpackCall(word uint32) (CallStatus, Handle) {
	return CallStatus(word & statusMask), Handle(word >> statusBits)
}

// CallbackCode is returned by FirstPoll and Callback to tell the host what
// to do next.
type CallbackCode uint32

const (
	CallbackExit  CallbackCode = 0
	CallbackYield CallbackCode = 1
	CallbackWait  CallbackCode = 2
)

func (c CallbackCode) String() string {
	switch c {
	case CallbackExit:
		return "EXIT"
	case CallbackYield:
		return "YIELD"
	case CallbackWait:
		return "WAIT"
	default:
		return fmt.Sprintf("CALLBACK(%d)", uint32(c))
	}
}

// PackWait builds the WAIT callback word for a waitable set.
func PackWait(set Handle) uint32 {
	return uint32(CallbackWait) | uint32(set)<<statusBits
}

// PackCallback builds a callback word. The set is only meaningful for WAIT.
func PackCallback(c CallbackCode, set Handle) uint32 {
	return uint32(c)&statusMask | uint32(set)<<statusBits
}

// UnpackCallback splits a callback word into its code and waitable set.
func UnpackCallback(word uint32) (CallbackCode, Handle) {
	return CallbackCode(word & statusMask), Handle(word >> statusBits)
}

// Result is the outcome of a stream or future transfer: a sentinel or an
// element count.
type Result int32

const (
	Blocked  Result = -1
	Closed   Result = math.MinInt32
	Canceled Result = 0
)

// Count wraps an element count as a Result.
func Count(n int) Result {
	if n < 0 || n > math.MaxInt32 {
		panic(fmt.Sprintf("abi: transfer count %d out of range", n))
	}
	return Result(n)
}

// N returns the element count, or 0 for sentinels.
func (r Result) N() int {
	if r < 0 {
		return 0
	}
	return int(r)
}

// IsBlocked reports whether the transfer has not completed yet.
func (r Result) IsBlocked() bool { return r == Blocked }

// IsClosed reports whether the other end went away.
func (r Result) IsClosed() bool { return r == Closed }

// Done reports whether no further elements will be transferred: the other
// end closed, or an empty transfer was reported.
func (r Result) Done() bool { return r == Closed || r == Canceled }

// Encode returns the wire form of r, carried as the event's third word.
func (r Result) Encode() uint32 { return uint32(r) }

// DecodeResult reads a transfer result from an event's third word.
func DecodeResult(aux uint32) Result { return Result(int32(aux)) }

func (r Result) String() string {
	switch r {
	case Blocked:
		return "BLOCKED"
	case Closed:
		return "CLOSED"
	case Canceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("%d", int32(r))
	}
}

// Event is one host-delivered notification: code, waitable and payload.
type Event struct {
	Code     EventCode
	Waitable Handle
	Aux      uint32
}

func (e Event) String() string {
	return fmt.Sprintf("%s(waitable=%d, aux=%d)", e.Code, e.Waitable, e.Aux)
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// SafeMulU32 multiplies and reports overflow.
func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

// SafeAddU32 adds and reports overflow.
func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}
