package future

import "github.com/wippyai/wit-async/errors"

// Ready returns a future that completes with v on its first poll.
func Ready[T any](v T) Future[T] {
	return &ready[T]{v: v}
}

type ready[T any] struct {
	v    T
	done bool
}

func (r *ready[T]) Poll(*Context) (T, bool) {
	if r.done {
		polledAfterCompletion("ready")
	}
	r.done = true
	return r.v, true
}

// Map applies fn to the value of f once it completes.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return &mapped[T, U]{inner: f, fn: fn}
}

type mapped[T, U any] struct {
	inner Future[T]
	fn    func(T) U
	done  bool
}

func (m *mapped[T, U]) Poll(cx *Context) (U, bool) {
	if m.done {
		polledAfterCompletion("map")
	}
	v, ok := m.inner.Poll(cx)
	if !ok {
		var zero U
		return zero, false
	}
	m.done = true
	return m.fn(v), true
}

// Then runs f, then the future fn builds from its value.
func Then[T, U any](f Future[T], fn func(T) Future[U]) Future[U] {
	return &chained[T, U]{first: f, fn: fn}
}

type chained[T, U any] struct {
	first  Future[T]
	fn     func(T) Future[U]
	second Future[U]
	done   bool
}

func (c *chained[T, U]) Poll(cx *Context) (U, bool) {
	if c.done {
		polledAfterCompletion("then")
	}
	if c.second == nil {
		v, ok := c.first.Poll(cx)
		if !ok {
			var zero U
			return zero, false
		}
		c.second = c.fn(v)
	}
	u, ok := c.second.Poll(cx)
	if ok {
		c.done = true
	}
	return u, ok
}

// Discard drops the value of f.
func Discard[T any](f Future[T]) Future[Unit] {
	return Map(f, func(T) Unit { return Unit{} })
}

// Join polls every future on each poll until all of them completed and
// returns their values in argument order.
func Join[T any](fs ...Future[T]) Future[[]T] {
	return &joined[T]{fs: fs, vals: make([]T, len(fs)), done: make([]bool, len(fs))}
}

type joined[T any] struct {
	fs       []Future[T]
	vals     []T
	done     []bool
	left     int
	started  bool
	finished bool
}

func (j *joined[T]) Poll(cx *Context) ([]T, bool) {
	if j.finished {
		polledAfterCompletion("join")
	}
	if !j.started {
		j.started = true
		j.left = len(j.fs)
	}
	for i, f := range j.fs {
		if j.done[i] {
			continue
		}
		if v, ok := f.Poll(cx); ok {
			j.vals[i] = v
			j.done[i] = true
			j.left--
		}
	}
	if j.left > 0 {
		return nil, false
	}
	j.finished = true
	return j.vals, true
}

// YieldNow completes on its second poll. The first poll wakes the task, so
// the scheduler hands control back to the host with YIELD before resuming.
func YieldNow() Future[Unit] {
	return &yielder{}
}

type yielder struct {
	polled bool
	done   bool
}

func (y *yielder) Poll(cx *Context) (Unit, bool) {
	if y.done {
		polledAfterCompletion("yield")
	}
	if !y.polled {
		y.polled = true
		cx.Waker().Wake()
		return Unit{}, false
	}
	y.done = true
	return Unit{}, true
}

func polledAfterCompletion(op string) {
	errors.New(errors.PhaseSchedule, errors.KindProtocol).
		Op(op).
		Detail("future polled after completion").
		Fatal()
}
