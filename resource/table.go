package resource

import (
	"sync"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
)

// Table maps host-style integer handles to values. Freed handles are reused
// most-recent-first, and handle 0 is never issued.
//
// An entry can be checked out: it stays allocated but Get and a second
// Checkout fail until it is checked back in. The scheduler uses this to
// hold exclusive access to the task it is polling.
type Table[T any] struct {
	name      string
	entries   []entry[T]
	freeList  []abi.Handle
	observers []observer
	live      int
	nextObs   int
	mu        sync.RWMutex
	closed    bool
}

type entry[T any] struct {
	value      T
	valid      bool
	checkedOut bool
}

type observer struct {
	o  Observer
	id int
}

// NewTable creates an empty table. The name labels errors and events.
func NewTable[T any](name string) *Table[T] {
	return &Table[T]{
		name:     name,
		entries:  make([]entry[T], 0, 16),
		freeList: make([]abi.Handle, 0, 8),
	}
}

// Name returns the table label.
func (t *Table[T]) Name() string {
	return t.name
}

// Insert stores v and returns its handle. It returns 0 once the table is
// closed.
func (t *Table[T]) Insert(v T) abi.Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}

	e := entry[T]{value: v, valid: true}
	var h abi.Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = abi.Handle(len(t.entries))
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Value: v})
	return h
}

func (t *Table[T]) lookup(h abi.Handle) *entry[T] {
	if h == 0 || int(h) > len(t.entries) {
		return nil
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value. Checked-out entries are not visible.
func (t *Table[T]) Get(h abi.Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero T
	e := t.lookup(h)
	if e == nil || e.checkedOut {
		return zero, false
	}
	return e.value, true
}

// Contains reports whether h is allocated, checked out or not.
func (t *Table[T]) Contains(h abi.Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookup(h) != nil
}

// Checkout takes exclusive access to the value at h.
func (t *Table[T]) Checkout(h abi.Handle) (T, bool) {
	t.mu.Lock()
	var zero T
	e := t.lookup(h)
	if e == nil || e.checkedOut {
		t.mu.Unlock()
		return zero, false
	}
	e.checkedOut = true
	v := e.value
	e.value = zero
	t.mu.Unlock()

	t.notify(Event{Type: EventCheckedOut, Handle: h, Value: v})
	return v, true
}

// Checkin returns a checked-out value to its slot.
func (t *Table[T]) Checkin(h abi.Handle, v T) {
	t.mu.Lock()
	e := t.lookup(h)
	if e == nil || !e.checkedOut {
		t.mu.Unlock()
		errors.New(errors.PhaseSchedule, errors.KindProtocol).
			Op(t.name + ".checkin").
			Handle(uint32(h)).
			Detail("handle is not checked out").
			Fatal()
	}
	e.value = v
	e.checkedOut = false
	t.mu.Unlock()

	t.notify(Event{Type: EventCheckedIn, Handle: h, Value: v})
}

// Remove frees h and returns the stored value. A checked-out entry can be
// removed; the zero value is returned for it.
func (t *Table[T]) Remove(h abi.Handle) (T, bool) {
	t.mu.Lock()
	var zero T
	e := t.lookup(h)
	if e == nil {
		t.mu.Unlock()
		return zero, false
	}
	v := e.value
	*e = entry[T]{}
	t.freeList = append(t.freeList, h)
	t.live--
	t.mu.Unlock()

	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
	return v, true
}

// Len returns the number of allocated handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every visible entry in handle order until fn returns
// false. fn must not modify the table.
func (t *Table[T]) Each(fn func(abi.Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid || e.checkedOut {
			continue
		}
		if !fn(abi.Handle(i+1), e.value) {
			return
		}
	}
}

// Subscribe adds an observer and returns a function that removes it.
func (t *Table[T]) Subscribe(o Observer) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observer{o: o, id: id})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, obs := range t.observers {
			if obs.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

// Close drops every remaining value, calling Drop on those that implement
// Dropper, and stops accepting inserts.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	entries := t.entries
	t.entries = nil
	t.freeList = nil
	t.live = 0
	t.mu.Unlock()

	for i := range entries {
		if !entries[i].valid {
			continue
		}
		if d, ok := any(entries[i].value).(Dropper); ok {
			d.Drop()
		}
		t.notify(Event{Type: EventDropped, Handle: abi.Handle(i + 1), Value: entries[i].value})
	}
	return nil
}

func (t *Table[T]) notify(e Event) {
	t.mu.RLock()
	if len(t.observers) == 0 {
		t.mu.RUnlock()
		return
	}
	obs := make([]Observer, len(t.observers))
	for i := range t.observers {
		obs[i] = t.observers[i].o
	}
	t.mu.RUnlock()

	e.Table = t.name
	for _, o := range obs {
		o.OnResourceEvent(e)
	}
}
