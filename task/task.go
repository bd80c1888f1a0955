package task

import (
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/waitable"
	"go.uber.org/zap"
)

// Task is one host-visible async task: the root future of an export call
// (or BlockOn) plus everything spawned into it.
//
// Task implements waitable.Registry and future.Spawner; futures reach it
// through the future.Context they are polled with.
type Task struct {
	log       *zap.Logger
	cx        *future.Context
	waitables *waitable.Map
	set       *waitable.Set
	futures   []future.Future[future.Unit]
	spawned   []future.Future[future.Unit]
	waker     future.Waker
	id        abi.Handle
}

var (
	_ waitable.Registry = (*Task)(nil)
	_ future.Spawner    = (*Task)(nil)
)

func newTask(host canon.Host, log *zap.Logger, root future.Future[future.Unit]) *Task {
	t := &Task{
		log:       log,
		waitables: waitable.NewMap(),
		set:       waitable.NewSet(host),
		futures:   []future.Future[future.Unit]{root},
	}
	t.cx = future.NewContext(&t.waker, t, t)
	return t
}

// ID returns the task's handle in the scheduler table. It is the value
// stored in the context slot.
func (t *Task) ID() abi.Handle {
	return t.id
}

// Register joins w to the task's waitable set and binds cb to its event.
func (t *Task) Register(w abi.Handle, cb waitable.Callback) {
	t.waitables.Insert(w, cb)
	t.set.Join(w)
	t.log.Debug("waitable registered",
		zap.Uint32("task", uint32(t.id)),
		zap.Uint32("waitable", uint32(w)),
		zap.Uint32("set", uint32(t.set.Handle())))
}

// Unregister removes w if it is registered.
func (t *Task) Unregister(w abi.Handle) {
	if _, ok := t.waitables.Remove(w); !ok {
		return
	}
	t.set.Leave(w)
	t.log.Debug("waitable unregistered",
		zap.Uint32("task", uint32(t.id)),
		zap.Uint32("waitable", uint32(w)))
}

// Spawn queues f. It is merged into the polled collection after the
// futures already queued.
func (t *Task) Spawn(f future.Future[future.Unit]) {
	t.spawned = append(t.spawned, f)
}

// Pending returns the number of futures that have not completed.
func (t *Task) Pending() int {
	return len(t.futures) + len(t.spawned)
}

// Waitables returns the registered waitables in ascending order.
func (t *Task) Waitables() []abi.Handle {
	return t.waitables.Handles()
}

// deliver routes one host event to the continuation registered for it.
func (t *Task) deliver(ev abi.Event) {
	if !ev.Code.Valid() {
		panic(errors.UnexpectedEvent(uint32(ev.Code)))
	}
	if ev.Code == abi.EventNone {
		return
	}
	cb, ok := t.waitables.Remove(ev.Waitable)
	if !ok {
		panic(errors.UnknownWaitable(uint32(ev.Waitable)))
	}
	t.set.Leave(ev.Waitable)

	aux := ev.Aux
	if status, ok := abi.StatusForEvent(ev.Code); ok {
		aux = uint32(status)
	}
	t.log.Debug("event delivered",
		zap.Uint32("task", uint32(t.id)),
		zap.Stringer("event", ev))
	cb(aux)
}

// pass polls every queued future once, then merges spawned futures.
// It reports whether anything completed or was merged.
func (t *Task) pass() bool {
	progress := false
	live := t.futures[:0]
	for _, f := range t.futures {
		if _, done := f.Poll(t.cx); done {
			progress = true
			continue
		}
		live = append(live, f)
	}
	for i := len(live); i < len(t.futures); i++ {
		t.futures[i] = nil
	}
	t.futures = live

	if len(t.spawned) > 0 {
		t.futures = append(t.futures, t.spawned...)
		clear(t.spawned)
		t.spawned = t.spawned[:0]
		progress = true
	}
	return progress
}

func (t *Task) idle() bool {
	return len(t.futures) == 0 && len(t.spawned) == 0
}
