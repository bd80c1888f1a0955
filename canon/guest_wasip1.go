//go:build wasip1

package canon

import (
	"unsafe"

	"github.com/wippyai/wit-async/abi"
)

//go:wasmimport $root [context-get-0]
func contextGet() uint32

//go:wasmimport $root [context-set-0]
func contextSet(v uint32)

//go:wasmimport $root [yield]
func yield()

//go:wasmimport $root [backpressure-set]
func backpressureSet(enabled uint32)

//go:wasmimport $root [subtask-drop]
func subtaskDrop(h uint32)

//go:wasmimport $root [waitable-set-new]
func waitableSetNew() uint32

//go:wasmimport $root [waitable-set-wait]
func waitableSetWait(set uint32, out unsafe.Pointer) uint32

//go:wasmimport $root [waitable-set-drop]
func waitableSetDrop(set uint32)

//go:wasmimport $root [waitable-join]
func waitableJoin(w, set uint32)

//go:wasmimport $root [event-new]
func eventNew() uint32

//go:wasmimport $root [event-trigger]
func eventTrigger(h, code, aux uint32)

//go:wasmimport $root [event-drop]
func eventDrop(h uint32)

// Guest calls the built-ins imported from the host.
type Guest struct{}

var _ Host = Guest{}

func (Guest) ContextGet() uint32 { return contextGet() }
func (Guest) ContextSet(v uint32) { contextSet(v) }
func (Guest) Yield() { yield() }

func (Guest) BackpressureSet(enabled bool) {
	var v uint32
	if enabled {
		v = 1
	}
	backpressureSet(v)
}

func (Guest) SubtaskDrop(h abi.Handle) { subtaskDrop(uint32(h)) }
func (Guest) WaitableSetNew() abi.Handle { return abi.Handle(waitableSetNew()) }
func (Guest) WaitableSetDrop(set abi.Handle) { waitableSetDrop(uint32(set)) }
func (Guest) WaitableJoin(w, set abi.Handle) { waitableJoin(uint32(w), uint32(set)) }
func (Guest) EventNew() abi.Handle { return abi.Handle(eventNew()) }
func (Guest) EventDrop(h abi.Handle) { eventDrop(uint32(h)) }

func (Guest) EventTrigger(h abi.Handle, code abi.EventCode, aux uint32) {
	eventTrigger(uint32(h), uint32(code), aux)
}

// WaitableSetWait receives (waitable, aux) through a two-word buffer.
func (Guest) WaitableSetWait(set abi.Handle) abi.Event {
	var out [2]uint32
	code := waitableSetWait(uint32(set), unsafe.Pointer(&out))
	return abi.Event{Code: abi.EventCode(code), Waitable: abi.Handle(out[0]), Aux: out[1]}
}
