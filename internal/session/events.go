package session

import (
	"time"

	"github.com/sadopc/punchclock/internal/store"
)

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventResumed
	EventStopped
	EventTick
	EventNotified
	EventPhotoAttached
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventTick:
		return "tick"
	case EventNotified:
		return "notified"
	case EventPhotoAttached:
		return "photo_attached"
	default:
		return "unknown"
	}
}

// Event describes something that happened to the session. Period and Image
// are copies owned by the receiver.
type Event struct {
	Kind    EventKind
	State   State
	Elapsed time.Duration
	Period  *store.TrackedPeriod
	Image   *store.Image
	// Total is the durable elapsed time pushed with EventNotified.
	Total time.Duration
}

// Listener is called after each event, outside the controller's locks.
// Listeners run on whichever goroutine produced the event.
type Listener func(Event)
