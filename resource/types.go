package resource

import "github.com/wippyai/wit-async/abi"

// EventType identifies a table lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventCheckedOut
	EventCheckedIn
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventCheckedOut:
		return "checked-out"
	case EventCheckedIn:
		return "checked-in"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Table  string
	Handle abi.Handle
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by values that need cleanup when the
// table is closed with the value still present.
type Dropper interface {
	Drop()
}
