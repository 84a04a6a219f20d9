package watching

// EventKind identifies the type of an Event.
type EventKind uint8

const (
	// EventReady indicates that initial subscriptions have been established.
	// It is sent exactly once, before any other event.
	EventReady EventKind = iota
	// EventChangeDetected indicates that one or more relevant changes were
	// observed since the previous event.
	EventChangeDetected
	// EventError indicates that the engine failed irrecoverably. It is always
	// the last event.
	EventError
)

// String provides a human-readable representation of an event kind.
func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventChangeDetected:
		return "change detected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a message sent from an Engine to its consumer.
type Event struct {
	// Kind is the event kind.
	Kind EventKind
	// Err is the failure cause. It is only set for EventError.
	Err error
}
