package canon

import "github.com/wippyai/wit-async/abi"

// Host is the set of Canonical ABI built-ins the scheduler consumes.
// Implementations: Guest (wasip1 builds, imported from the host) and
// loopback.Host (in-process, for native execution and tests).
type Host interface {
	// ContextGet reads the instance-local slot of the current host task.
	ContextGet() uint32
	// ContextSet writes the instance-local slot of the current host task.
	ContextSet(v uint32)

	// Yield gives the host a chance to run other work.
	Yield()
	// BackpressureSet asks the host to stop or resume delivering new calls.
	BackpressureSet(enabled bool)

	// SubtaskDrop releases a subtask handle after its results were lifted.
	SubtaskDrop(h abi.Handle)

	// WaitableSetNew mints an empty waitable set.
	WaitableSetNew() abi.Handle
	// WaitableSetWait blocks until some waitable in the set has an event.
	WaitableSetWait(set abi.Handle) abi.Event
	// WaitableSetDrop releases an empty waitable set.
	WaitableSetDrop(set abi.Handle)
	// WaitableJoin moves a waitable into set, or out of any set when set is 0.
	WaitableJoin(w, set abi.Handle)

	// EventNew mints a waitable that fires when triggered.
	EventNew() abi.Handle
	// EventTrigger makes the event deliver (code, h, aux) once.
	EventTrigger(h abi.Handle, code abi.EventCode, aux uint32)
	// EventDrop releases an event handle.
	EventDrop(h abi.Handle)
}

// Link names of the built-ins in the $root import module.
const (
	ModuleRoot = "$root"

	FuncContextGet      = "[context-get-0]"
	FuncContextSet      = "[context-set-0]"
	FuncYield           = "[yield]"
	FuncBackpressureSet = "[backpressure-set]"
	FuncSubtaskDrop     = "[subtask-drop]"
	FuncWaitableSetNew  = "[waitable-set-new]"
	FuncWaitableSetWait = "[waitable-set-wait]"
	FuncWaitableSetDrop = "[waitable-set-drop]"
	FuncWaitableJoin    = "[waitable-join]"
	FuncEventNew        = "[event-new]"
	FuncEventTrigger    = "[event-trigger]"
	FuncEventDrop       = "[event-drop]"
)
