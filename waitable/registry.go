package waitable

import (
	"sort"

	"github.com/wippyai/wit-async/abi"
	"github.com/wippyai/wit-async/errors"
)

// Callback receives the status or transfer count of a delivered event.
type Callback func(aux uint32)

// Registry binds waitables to the continuation that handles their event.
// The scheduler's Task is the one implementation; subtask and stream code
// receive it through future.Context.
type Registry interface {
	// Register joins w to the task's waitable set. Registering a waitable
	// that is already registered is a protocol error.
	Register(w abi.Handle, cb Callback)
	// Unregister removes w from the task's map and set. Unknown handles are
	// ignored so that drop paths can call it unconditionally.
	Unregister(w abi.Handle)
}

// Map is the per-task table of registered waitables.
type Map struct {
	entries map[abi.Handle]Callback
}

// NewMap creates an empty table.
func NewMap() *Map {
	return &Map{entries: make(map[abi.Handle]Callback)}
}

// Insert stores cb for w. It panics if w is 0 or already present.
func (m *Map) Insert(w abi.Handle, cb Callback) {
	if w == 0 {
		errors.New(errors.PhaseSchedule, errors.KindInvalidInput).
			Op("register").
			Detail("waitable handle 0").
			Fatal()
	}
	if cb == nil {
		errors.New(errors.PhaseSchedule, errors.KindInvalidInput).
			Op("register").
			Handle(uint32(w)).
			Detail("nil callback").
			Fatal()
	}
	if _, dup := m.entries[w]; dup {
		panic(errors.DuplicateWaitable(uint32(w)))
	}
	m.entries[w] = cb
}

// Remove deletes w and returns its callback.
func (m *Map) Remove(w abi.Handle) (Callback, bool) {
	cb, ok := m.entries[w]
	if ok {
		delete(m.entries, w)
	}
	return cb, ok
}

// Contains reports whether w is registered.
func (m *Map) Contains(w abi.Handle) bool {
	_, ok := m.entries[w]
	return ok
}

// Len returns the number of outstanding waitables.
func (m *Map) Len() int {
	return len(m.entries)
}

// Handles returns the registered handles in ascending order.
func (m *Map) Handles() []abi.Handle {
	hs := make([]abi.Handle, 0, len(m.entries))
	for h := range m.entries {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}
