package subtask

import (
	"unsafe"

	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/layout"
	"go.uber.org/zap"
)

// Runtime supplies the host and allocator a subtask needs.
// *task.Scheduler implements it.
type Runtime interface {
	Host() canon.Host
	Allocator() witasync.Allocator
}

// Import is the generated-code side of one async-lowered import.
type Import[P, R any] interface {
	// Layout describes the call's memory: lowered parameters followed by
	// the result region at ResultOffset.
	Layout() layout.Layout
	// Call invokes the async-lowered entry point. The result packs the
	// call status in its low 4 bits and the subtask handle above them.
	Call(params, results unsafe.Pointer) uint32
	// LowerParams writes p at ptr, allocating indirect payloads as needed.
	LowerParams(p P, ptr unsafe.Pointer)
	// DeallocLists frees the indirect payloads LowerParams allocated,
	// leaving the parameter block itself alone.
	DeallocLists(ptr unsafe.Pointer)
	// LiftResults reads the results at ptr.
	LiftResults(ptr unsafe.Pointer) R
}

// State is the progress of a subtask.
type State uint8

const (
	StateUnpolled State = iota
	StateStarting
	StateStarted
	StateReturned
)

func (s State) String() string {
	switch s {
	case StateUnpolled:
		return "unpolled"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateReturned:
		return "returned"
	default:
		return "unknown"
	}
}

// Subtask is one call to an async-lowered import. It is a future of the
// call's results: the first poll issues the call, later polls wait for the
// host to report RETURNED.
//
// The call's memory block stays allocated until results are lifted, and
// parameter payloads stay allocated until the host reports that it read
// the parameters.
type Subtask[P, R any] struct {
	rt         Runtime
	imp        Import[P, R]
	params     P
	result     R
	log        *zap.Logger
	ptr        unsafe.Pointer
	layout     layout.Layout
	handle     abi.Handle
	state      State
	listsFreed bool
	registered bool
	taken      bool
}

var _ future.Future[struct{}] = (*Subtask[struct{}, struct{}])(nil)

// Start prepares a call of imp with params. Nothing reaches the host until
// the subtask is first polled.
func Start[P, R any](rt Runtime, imp Import[P, R], params P) *Subtask[P, R] {
	return &Subtask[P, R]{
		rt:     rt,
		imp:    imp,
		params: params,
		layout: imp.Layout(),
		log:    Logger(),
	}
}

// State returns the current state.
func (s *Subtask[P, R]) State() State {
	return s.state
}

// Handle returns the host subtask handle, or 0 when none is held.
func (s *Subtask[P, R]) Handle() abi.Handle {
	return s.handle
}

// InFlight reports whether the host may still access the call's memory.
func (s *Subtask[P, R]) InFlight() bool {
	return s.state == StateStarting || s.state == StateStarted
}

// Poll issues the call on first use and then waits for RETURNED.
func (s *Subtask[P, R]) Poll(cx *future.Context) (R, bool) {
	if s.taken {
		errors.New(errors.PhaseSubtask, errors.KindProtocol).
			Op("poll").
			Detail("subtask polled after completion").
			Fatal()
	}
	if s.state == StateUnpolled {
		s.start()
	}
	if s.state == StateReturned {
		s.taken = true
		r := s.result
		var zero R
		s.result = zero
		return r, true
	}

	if !s.registered {
		s.registered = true
		waker := cx.Waker()
		cx.Register(s.handle, func(aux uint32) {
			s.registered = false
			s.update(abi.CallStatus(aux))
			waker.Wake()
		})
	}
	var zero R
	return zero, false
}

func (s *Subtask[P, R]) start() {
	if !s.layout.IsZero() {
		s.ptr = s.rt.Allocator().Alloc(uintptr(s.layout.Size), uintptr(s.layout.Align))
		if s.ptr == nil {
			panic(errors.AllocationFailed(errors.PhaseSubtask, uintptr(s.layout.Size), uintptr(s.layout.Align)))
		}
	}
	region := layout.NewRegion(s.ptr, s.layout)
	s.imp.LowerParams(s.params, region.Params())
	var zero P
	s.params = zero

	status, h := abi.UnpackCall(s.imp.Call(region.Params(), region.Results()))
	s.log.Debug("subtask call",
		zap.Stringer("status", status),
		zap.Uint32("subtask", uint32(h)))

	if status != abi.StatusReturned && h == 0 {
		errors.New(errors.PhaseSubtask, errors.KindProtocol).
			Op("call").
			Detail("status %s without a subtask handle", status).
			Fatal()
	}
	s.handle = h
	s.state = StateStarting
	s.update(status)
}

// update applies one status report from the host.
func (s *Subtask[P, R]) update(status abi.CallStatus) {
	switch status {
	case abi.StatusStarting:
	case abi.StatusStarted:
		s.freeLists()
		s.state = StateStarted
	case abi.StatusReturned:
		// The host may skip STARTED; parameter payloads still go first.
		s.freeLists()
		region := layout.NewRegion(s.ptr, s.layout)
		s.result = s.imp.LiftResults(region.Results())
		s.release()
		s.state = StateReturned
	default:
		errors.New(errors.PhaseSubtask, errors.KindProtocol).
			Op("update").
			Handle(uint32(s.handle)).
			Value(status).
			Detail("unexpected call status %s", status).
			Fatal()
	}
	s.log.Debug("subtask status",
		zap.Uint32("subtask", uint32(s.handle)),
		zap.Stringer("status", status),
		zap.Stringer("state", s.state))
}

func (s *Subtask[P, R]) freeLists() {
	if s.listsFreed {
		return
	}
	s.listsFreed = true
	s.imp.DeallocLists(s.ptr)
}

func (s *Subtask[P, R]) release() {
	if s.ptr != nil {
		s.rt.Allocator().Free(s.ptr, uintptr(s.layout.Size), uintptr(s.layout.Align))
		s.ptr = nil
	}
	if s.handle != 0 {
		s.rt.Host().SubtaskDrop(s.handle)
		s.handle = 0
	}
}

// Close releases a subtask that is no longer wanted. Unpolled and returned
// subtasks need nothing. Cancelling a call the host is still running is
// not supported: its memory may still be read or written, so Close aborts.
func (s *Subtask[P, R]) Close() {
	if !s.InFlight() {
		return
	}
	err := errors.Unsupported(errors.PhaseSubtask, "cancelling an in-flight async import call")
	err.Op = "close"
	err.Handle = uint32(s.handle)
	s.log.Error("aborting: subtask dropped before it returned",
		zap.Uint32("subtask", uint32(s.handle)),
		zap.Stringer("state", s.state))
	panic(err)
}
