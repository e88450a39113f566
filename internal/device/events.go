package device

import "fmt"

// EventType marks what happened to a peripheral on the adapter
type EventType int

const (
	EventDiscovered EventType = iota
	EventConnected
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventDiscovered:
		return "discovered"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one entry of the adapter-wide event stream
type Event struct {
	Type         EventType
	PeripheralID string
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.PeripheralID)
}
