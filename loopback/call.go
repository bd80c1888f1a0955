package loopback

import (
	"unsafe"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"go.uber.org/zap"
)

// Call is one in-flight invocation of an import created with Import.
type Call struct {
	host    *Host
	params  unsafe.Pointer
	results unsafe.Pointer
	handle  abi.Handle
	status  abi.CallStatus
	inline  bool
}

// Params returns the lowered parameter block, nil for an empty layout.
func (c *Call) Params() unsafe.Pointer { return c.params }

// Results returns the result block the callee writes, nil for an empty
// layout.
func (c *Call) Results() unsafe.Pointer { return c.results }

// Handle returns the subtask handle the caller sees.
func (c *Call) Handle() abi.Handle { return c.handle }

// Status returns the current call status.
func (c *Call) Status() abi.CallStatus { return c.status }

// Start reports that the callee has consumed the parameters.
func (c *Call) Start() {
	c.advance(abi.StatusStarted)
}

// Return reports that the results are written. It implies Start.
func (c *Call) Return() {
	c.advance(abi.StatusReturned)
}

func (c *Call) advance(to abi.CallStatus) {
	h := c.host
	h.mu.Lock()
	if to <= c.status {
		h.mu.Unlock()
		errors.New(errors.PhaseHost, errors.KindProtocol).
			Op("call-status").
			Handle(uint32(c.handle)).
			Detail("cannot move from %s to %s", c.status, to).
			Fatal()
	}
	c.status = to
	if c.inline {
		h.mu.Unlock()
		return
	}
	obj, ok := h.objects.Get(c.handle)
	if !ok {
		h.mu.Unlock()
		panic(errors.NotFound(errors.PhaseHost, "call-status", uint32(c.handle)))
	}
	code := abi.EventCallStarted
	if to == abi.StatusReturned {
		code = abi.EventCallReturned
	}
	h.pendLocked(obj, abi.Event{Code: code, Waitable: c.handle, Aux: uint32(to)})
	h.mu.Unlock()
	h.trace("call-status", c.handle, uint32(to), to.String())
}

// Import turns fn into an async-lowered import entry point. fn runs inside
// the call. It may finish at once with Start and Return, or queue the rest
// of its work with Defer; status changes made after the entry point returned
// reach the caller as CALL_STARTED and CALL_RETURNED events.
func (h *Host) Import(fn func(*Call)) func(params, results unsafe.Pointer) uint32 {
	return func(params, results unsafe.Pointer) uint32 {
		c := &Call{
			host:    h,
			params:  params,
			results: results,
			status:  abi.StatusStarting,
			inline:  true,
		}
		c.handle = h.objects.Insert(&object{kind: kindSubtask, call: c})
		fn(c)

		h.mu.Lock()
		c.inline = false
		status := c.status
		h.mu.Unlock()

		if status == abi.StatusReturned {
			h.objects.Remove(c.handle)
			c.handle = 0
			h.trace("call", 0, uint32(status), "returned inline")
			return abi.PackCall(status, 0)
		}
		h.log.Debug("call in flight",
			zap.Uint32("subtask", uint32(c.handle)),
			zap.Stringer("status", status))
		h.trace("call", c.handle, uint32(status), "in flight")
		return abi.PackCall(status, c.handle)
	}
}
