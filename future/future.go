package future

import (
	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
	"github.com/wippyai/wit-async/waitable"
)

// Unit is the value of futures that complete without a result.
type Unit = struct{}

// Future is a value that becomes available later. Poll returns the value and
// true once it is ready; otherwise it returns false and arranges for the
// context's waker (or a registered waitable) to trigger another poll.
// A future must not be polled again after it reported ready.
type Future[T any] interface {
	Poll(cx *Context) (T, bool)
}

// Waker records that the owning task must be polled again.
type Waker struct {
	woken bool
}

// Wake marks the task runnable.
func (w *Waker) Wake() {
	if w != nil {
		w.woken = true
	}
}

// Woken reports whether Wake was called since the last Reset.
func (w *Waker) Woken() bool {
	return w != nil && w.woken
}

// Reset clears the flag and returns its previous value.
func (w *Waker) Reset() bool {
	prev := w.woken
	w.woken = false
	return prev
}

// Spawner accepts futures that run alongside the current one in its task.
type Spawner interface {
	Spawn(f Future[Unit])
}

// Context is handed to every Poll. It carries the task's waker, its
// waitable registry and its spawner.
type Context struct {
	waker    *Waker
	registry waitable.Registry
	spawner  Spawner
}

// NewContext builds a poll context. Registry and spawner may be nil for
// futures that never wait on the host.
func NewContext(w *Waker, r waitable.Registry, s Spawner) *Context {
	return &Context{waker: w, registry: r, spawner: s}
}

// Waker returns the waker of the task being polled.
func (cx *Context) Waker() *Waker {
	return cx.waker
}

// Register binds a waitable to cb in the polling task.
func (cx *Context) Register(w abi.Handle, cb waitable.Callback) {
	if cx.registry == nil {
		errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
			Op("register").
			Handle(uint32(w)).
			Detail("poll context has no waitable registry").
			Fatal()
	}
	cx.registry.Register(w, cb)
}

// Unregister removes a waitable from the polling task.
func (cx *Context) Unregister(w abi.Handle) {
	if cx.registry != nil {
		cx.registry.Unregister(w)
	}
}

// Registry returns the polling task's registry.
func (cx *Context) Registry() waitable.Registry {
	return cx.registry
}

// Spawn adds f to the polling task. It runs after the futures already
// queued and before the task yields or waits.
func (cx *Context) Spawn(f Future[Unit]) {
	if cx.spawner == nil {
		errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
			Op("spawn").
			Detail("poll context has no spawner").
			Fatal()
	}
	cx.spawner.Spawn(f)
}

// Func adapts a poll function to the Future interface.
type Func[T any] func(cx *Context) (T, bool)

func (f Func[T]) Poll(cx *Context) (T, bool) {
	return f(cx)
}
