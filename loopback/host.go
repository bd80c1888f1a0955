package loopback

import (
	"sync"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/resource"
	"go.uber.org/zap"
)

type kind uint8

const (
	kindSet kind = iota + 1
	kindEvent
	kindSubtask
)

func (k kind) String() string {
	switch k {
	case kindSet:
		return "waitable-set"
	case kindEvent:
		return "event"
	case kindSubtask:
		return "subtask"
	default:
		return "unknown"
	}
}

// object is one entry of the host handle table.
type object struct {
	call    *Call
	event   abi.Event
	seq     uint64
	set     abi.Handle
	members int
	kind    kind
	pending bool
}

type hostTask struct {
	slot uint32
}

// Stats counts host activity.
type Stats struct {
	Live         int
	Exports      uint64
	Callbacks    uint64
	Waits        uint64
	Yields       uint64
	Jobs         uint64
	SubtaskDrops uint64
	Backpressure bool
}

// Host implements every built-in in process. Waitables, sets, events and
// subtasks share one handle table; pending events are delivered in trigger
// order. Work that would run concurrently on a real host is queued with
// Defer and runs when the guest yields or waits.
type Host struct {
	opts    Options
	log     *zap.Logger
	objects *resource.Table[*object]
	root    hostTask
	current *hostTask
	jobs    []func()
	seq     uint64
	stats   Stats
	mu      sync.Mutex
}

// New creates an empty host.
func New(opts ...Option) *Host {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	h := &Host{
		opts:    o,
		log:     o.Logger,
		objects: resource.NewTable[*object]("loopback"),
	}
	h.current = &h.root
	return h
}

// Observe subscribes o to handle lifecycle events and returns a function
// that removes it.
func (h *Host) Observe(o resource.Observer) func() {
	return h.objects.Subscribe(o)
}

// Live returns the number of handles still allocated.
func (h *Host) Live() int {
	return h.objects.Len()
}

// Stats returns a snapshot of the counters.
func (h *Host) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Live = h.objects.Len()
	return s
}

// Defer queues job to run the next time the guest yields or waits.
func (h *Host) Defer(job func()) {
	h.mu.Lock()
	h.jobs = append(h.jobs, job)
	h.mu.Unlock()
}

// Pending returns the number of queued jobs.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs)
}

// ContextGet implements canon.Host.
func (h *Host) ContextGet() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.slot
}

// ContextSet implements canon.Host.
func (h *Host) ContextSet(v uint32) {
	h.mu.Lock()
	h.current.slot = v
	h.mu.Unlock()
	h.trace("context-set", 0, v, "")
}

// Yield implements canon.Host by running one queued job.
func (h *Host) Yield() {
	h.mu.Lock()
	h.stats.Yields++
	h.mu.Unlock()
	h.trace("yield", 0, 0, "")
	h.runJob()
}

// BackpressureSet implements canon.Host. The flag is only recorded.
func (h *Host) BackpressureSet(enabled bool) {
	h.mu.Lock()
	h.stats.Backpressure = enabled
	h.mu.Unlock()
	h.log.Debug("backpressure", zap.Bool("enabled", enabled))
}

// SubtaskDrop implements canon.Host. The subtask must have returned.
func (h *Host) SubtaskDrop(sub abi.Handle) {
	h.mu.Lock()
	obj := h.lookupLocked("subtask-drop", sub, kindSubtask)
	if obj.call.status != abi.StatusReturned {
		h.mu.Unlock()
		errors.New(errors.PhaseHost, errors.KindProtocol).
			Op("subtask-drop").
			Handle(uint32(sub)).
			Detail("subtask is %s", obj.call.status).
			Fatal()
	}
	h.detachLocked(obj)
	h.objects.Remove(sub)
	h.stats.SubtaskDrops++
	h.mu.Unlock()
	h.trace("subtask-drop", sub, 0, "")
}

// WaitableSetNew implements canon.Host.
func (h *Host) WaitableSetNew() abi.Handle {
	set := h.objects.Insert(&object{kind: kindSet})
	h.trace("waitable-set-new", set, 0, "")
	return set
}

// WaitableSetWait implements canon.Host. Queued jobs run until an event
// for a member of set is pending. With nothing pending and nothing queued
// the guest can never be woken, which is reported as a deadlock.
func (h *Host) WaitableSetWait(set abi.Handle) abi.Event {
	h.mu.Lock()
	h.lookupLocked("waitable-set-wait", set, kindSet)
	h.stats.Waits++
	h.mu.Unlock()

	for steps := 0; ; steps++ {
		if ev, ok := h.take(set); ok {
			h.trace("deliver", ev.Waitable, ev.Aux, ev.Code.String())
			return ev
		}
		if steps >= h.opts.MaxSteps {
			errors.New(errors.PhaseHost, errors.KindDeadlock).
				Op("waitable-set-wait").
				Handle(uint32(set)).
				Detail("no event after %d host jobs", steps).
				Fatal()
		}
		if !h.runJob() {
			errors.New(errors.PhaseHost, errors.KindDeadlock).
				Op("waitable-set-wait").
				Handle(uint32(set)).
				Detail("nothing pending and no host work queued").
				Fatal()
		}
	}
}

// WaitableSetDrop implements canon.Host. The set must be empty.
func (h *Host) WaitableSetDrop(set abi.Handle) {
	h.mu.Lock()
	obj := h.lookupLocked("waitable-set-drop", set, kindSet)
	if obj.members != 0 {
		h.mu.Unlock()
		errors.New(errors.PhaseHost, errors.KindProtocol).
			Op("waitable-set-drop").
			Handle(uint32(set)).
			Detail("set still has %d members", obj.members).
			Fatal()
	}
	h.objects.Remove(set)
	h.mu.Unlock()
	h.trace("waitable-set-drop", set, 0, "")
}

// WaitableJoin implements canon.Host.
func (h *Host) WaitableJoin(w, set abi.Handle) {
	h.mu.Lock()
	obj := h.lookupLocked("waitable-join", w, 0)
	if obj.kind == kindSet {
		h.mu.Unlock()
		panic(errors.InvalidInput(errors.PhaseHost, "a waitable set cannot join a set"))
	}
	var target *object
	if set != 0 {
		target = h.lookupLocked("waitable-join", set, kindSet)
	}
	h.detachLocked(obj)
	if target != nil {
		target.members++
		obj.set = set
	}
	h.mu.Unlock()
	h.trace("waitable-join", w, uint32(set), "")
}

// EventNew implements canon.Host.
func (h *Host) EventNew() abi.Handle {
	ev := h.objects.Insert(&object{kind: kindEvent})
	h.trace("event-new", ev, 0, "")
	return ev
}

// EventTrigger implements canon.Host. A trigger that has not been
// delivered yet is replaced.
func (h *Host) EventTrigger(ev abi.Handle, code abi.EventCode, aux uint32) {
	h.mu.Lock()
	obj := h.lookupLocked("event-trigger", ev, kindEvent)
	h.pendLocked(obj, abi.Event{Code: code, Waitable: ev, Aux: aux})
	h.mu.Unlock()
	h.trace("event-trigger", ev, aux, code.String())
}

// EventDrop implements canon.Host. A pending trigger is discarded.
func (h *Host) EventDrop(ev abi.Handle) {
	h.mu.Lock()
	obj := h.lookupLocked("event-drop", ev, kindEvent)
	h.detachLocked(obj)
	h.objects.Remove(ev)
	h.mu.Unlock()
	h.trace("event-drop", ev, 0, "")
}

// Close releases every remaining handle.
func (h *Host) Close() error {
	h.mu.Lock()
	h.jobs = nil
	h.mu.Unlock()
	return h.objects.Close()
}

// lookupLocked resolves a handle and checks its kind; want 0 accepts any
// kind. Failures unlock before panicking so a recovering caller can keep
// using the host.
func (h *Host) lookupLocked(op string, handle abi.Handle, want kind) *object {
	obj, ok := h.objects.Get(handle)
	if !ok {
		h.mu.Unlock()
		panic(errors.NotFound(errors.PhaseHost, op, uint32(handle)))
	}
	if want != 0 && obj.kind != want {
		h.mu.Unlock()
		errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Op(op).
			Handle(uint32(handle)).
			Detail("handle is a %s, want %s", obj.kind, want).
			Fatal()
	}
	return obj
}

func (h *Host) detachLocked(obj *object) {
	if obj.set == 0 {
		return
	}
	if set, ok := h.objects.Get(obj.set); ok && set.members > 0 {
		set.members--
	}
	obj.set = 0
}

func (h *Host) pendLocked(obj *object, ev abi.Event) {
	h.seq++
	obj.event = ev
	obj.seq = h.seq
	obj.pending = true
}

// take removes the oldest pending event among the members of set.
func (h *Host) take(set abi.Handle) (abi.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var best *object
	h.objects.Each(func(_ abi.Handle, obj *object) bool {
		if obj.pending && obj.set == set && (best == nil || obj.seq < best.seq) {
			best = obj
		}
		return true
	})
	if best == nil {
		return abi.Event{}, false
	}
	best.pending = false
	return best.event, true
}

func (h *Host) runJob() bool {
	h.mu.Lock()
	if len(h.jobs) == 0 {
		h.mu.Unlock()
		return false
	}
	job := h.jobs[0]
	h.jobs = h.jobs[1:]
	h.stats.Jobs++
	h.mu.Unlock()
	job()
	return true
}

func (h *Host) trace(op string, handle abi.Handle, aux uint32, detail string) {
	if h.opts.Trace == nil {
		return
	}
	h.opts.Trace(TraceEvent{Op: op, Handle: uint32(handle), Aux: aux, Detail: detail})
}
