package task

import (
	witasync "github.com/wippyai/wit-async"
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/canon"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/future"
	"github.com/wippyai/wit-async/resource"
	"go.uber.org/zap"
)

// Stats counts scheduler activity since creation.
type Stats struct {
	Tasks     int    // tasks alive (waiting, yielded or polling)
	Polls     uint64 // poll passes
	Callbacks uint64 // host callbacks received
	Yields    uint64 // YIELD results
	Waits     uint64 // WAIT results
}

// Scheduler drives the async tasks of one component instance.
//
// Live tasks are kept in a handle table; the instance-local context slot
// holds the handle of the task the host is currently running. A task is
// checked out of the table while it is polled. Not safe for concurrent use:
// the instance is single-threaded.
type Scheduler struct {
	host   canon.Host
	alloc  witasync.Allocator
	log    *zap.Logger
	tasks  *resource.Table[*Task]
	active *Task
	stats  Stats
}

// New creates a scheduler bound to host.
func New(host canon.Host, opts ...Option) *Scheduler {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler{
		host:  host,
		alloc: o.Allocator,
		log:   o.Logger,
		tasks: resource.NewTable[*Task]("tasks"),
	}
}

// Host returns the host built-ins the scheduler calls.
func (s *Scheduler) Host() canon.Host {
	return s.host
}

// Allocator returns the allocator for call and transfer buffers.
func (s *Scheduler) Allocator() witasync.Allocator {
	return s.alloc
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *zap.Logger {
	return s.log
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Tasks = s.tasks.Len()
	return st
}

// Observe subscribes o to task lifecycle events and returns a function
// that removes it.
func (s *Scheduler) Observe(o resource.Observer) func() {
	return s.tasks.Subscribe(o)
}

// Active returns the task being polled, or nil between polls.
func (s *Scheduler) Active() *Task {
	return s.active
}

// FirstPoll starts an async export. It wraps f so onDone receives its value,
// installs the new task in the context slot and polls it immediately. The
// returned word is the export's result for the host: EXIT, YIELD or WAIT
// with the task's waitable set.
func FirstPoll[T any](s *Scheduler, f future.Future[T], onDone func(T)) uint32 {
	root := future.Map(f, func(v T) future.Unit {
		if onDone != nil {
			onDone(v)
		}
		return future.Unit{}
	})

	t := s.spawnTask(root)
	s.host.ContextSet(uint32(t.id))
	s.log.Debug("task started", zap.Uint32("task", uint32(t.id)))
	return s.run(t, abi.Event{Code: abi.EventNone})
}

// Callback is the export's async callback. The host calls it with the
// three event words whenever a waitable of the current task fires.
func (s *Scheduler) Callback(e0, e1, e2 uint32) uint32 {
	s.stats.Callbacks++
	slot := s.host.ContextGet()
	t, ok := s.tasks.Checkout(abi.Handle(slot))
	if !ok {
		panic(errors.MissingTask(slot))
	}
	return s.run(t, abi.Event{Code: abi.EventCode(e0), Waitable: abi.Handle(e1), Aux: e2})
}

// BlockOn runs f to completion without returning to a host dispatcher.
// YIELD becomes [yield] and WAIT becomes [waitable-set-wait] on the private
// task's set. The task active before the call is active again afterwards.
func BlockOn[T any](s *Scheduler, f future.Future[T]) T {
	var out T
	root := future.Map(f, func(v T) future.Unit {
		out = v
		return future.Unit{}
	})

	t := s.spawnTask(root)
	prev := s.active
	s.active = t
	defer func() { s.active = prev }()

	s.log.Debug("blocking task started", zap.Uint32("task", uint32(t.id)))
	ev := abi.Event{Code: abi.EventNone}
	for {
		t.deliver(ev)
		code, _ := abi.UnpackCallback(s.loop(t))
		switch code {
		case abi.CallbackExit:
			s.retire(t)
			return out
		case abi.CallbackYield:
			s.host.Yield()
			ev = abi.Event{Code: abi.EventNone}
		default:
			ev = t.set.Wait()
		}
	}
}

// Spawn adds f to the task being polled. It panics between polls.
func (s *Scheduler) Spawn(f future.Future[future.Unit]) {
	if s.active == nil {
		errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
			Op("spawn").
			Detail("no active task").
			Fatal()
	}
	s.active.Spawn(f)
}

// Yield lets the host run other work. It returns once the host resumes
// this instance.
func (s *Scheduler) Yield() {
	s.host.Yield()
}

// BackpressureSet asks the host to stop (true) or resume (false) starting
// new export calls on this instance.
func (s *Scheduler) BackpressureSet(enabled bool) {
	s.log.Debug("backpressure", zap.Bool("enabled", enabled))
	s.host.BackpressureSet(enabled)
}

func (s *Scheduler) spawnTask(root future.Future[future.Unit]) *Task {
	t := newTask(s.host, s.log, root)
	t.id = s.tasks.Insert(t)
	if t.id == 0 {
		errors.New(errors.PhaseSchedule, errors.KindClosed).
			Op("task.new").
			Detail("task table closed").
			Fatal()
	}
	s.tasks.Checkout(t.id)
	return t
}

// run delivers ev to a checked-out task, polls it to quiescence and either
// retires it or checks it back in.
func (s *Scheduler) run(t *Task, ev abi.Event) uint32 {
	prev := s.active
	s.active = t
	defer func() { s.active = prev }()

	t.deliver(ev)
	word := s.loop(t)

	code, set := abi.UnpackCallback(word)
	s.log.Debug("task suspended",
		zap.Uint32("task", uint32(t.id)),
		zap.Stringer("code", code),
		zap.Uint32("set", uint32(set)))

	if code == abi.CallbackExit {
		s.retire(t)
		s.host.ContextSet(0)
		return word
	}
	s.tasks.Checkin(t.id, t)
	return word
}

// loop repeats poll passes while they make progress.
func (s *Scheduler) loop(t *Task) uint32 {
	for {
		t.waker.Reset()
		progress := t.pass()
		s.stats.Polls++

		if t.idle() {
			if n := t.waitables.Len(); n != 0 {
				errors.New(errors.PhaseSchedule, errors.KindProtocol).
					Op("poll").
					Handle(uint32(t.id)).
					Detail("task finished with %d waitables outstanding", n).
					Fatal()
			}
			return abi.PackCallback(abi.CallbackExit, 0)
		}
		if progress {
			continue
		}
		if t.waker.Woken() {
			s.stats.Yields++
			return abi.PackCallback(abi.CallbackYield, 0)
		}
		if t.waitables.Len() == 0 {
			errors.New(errors.PhaseSchedule, errors.KindDeadlock).
				Op("poll").
				Handle(uint32(t.id)).
				Detail("task is pending with no wake and no waitable").
				Fatal()
		}
		s.stats.Waits++
		return abi.PackWait(t.set.Handle())
	}
}

func (s *Scheduler) retire(t *Task) {
	t.set.Drop()
	s.tasks.Remove(t.id)
	s.log.Debug("task exited", zap.Uint32("task", uint32(t.id)))
}
