package resource

import "fmt"

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

const (
	indexBits = 20
	genBits   = 32 - indexBits
	indexMask = 1<<indexBits - 1

	// MaxSlots is the largest number of slots a table can address.
	MaxSlots = indexMask

	maxGeneration = 1<<genBits - 1
)

func makeHandle(idx int, gen uint16) Handle {
	return Handle(uint32(gen)<<indexBits | uint32(idx+1))
}

// slot returns the zero-based slot index, or false for the zero handle.
func (h Handle) slot() (int, bool) {
	i := int(uint32(h) & indexMask)
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

func (h Handle) generation() uint16 {
	return uint16(uint32(h) >> indexBits)
}

// IsZero reports whether h is the reserved invalid handle.
func (h Handle) IsZero() bool {
	return h == 0
}

func (h Handle) String() string {
	idx, ok := h.slot()
	if !ok {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d.%d)", idx, h.generation())
}

// EventType identifies a resource lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventTaken
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventTaken:
		return "taken"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop()
}
