package engine

import "sync"

type EventType string

const (
	EventEntityChanged       EventType = "entity_changed"
	EventEntityRemoved       EventType = "entity_removed"
	EventCommitFailed        EventType = "commit_failed"
	EventBulkDeleteCompleted EventType = "bulk_delete_completed"
	EventPanelClosed         EventType = "panel_closed"
)

// Event is what UI collaborators bind to. Group and Err are set only for
// commit_failed; SucceededIDs/FailedIDs only for bulk_delete_completed.
type Event struct {
	Type    EventType
	LocalID string
	Group   FieldGroup
	Err     error

	SucceededIDs []string
	FailedIDs    []string
}

// Bus fans events out to subscribers. Delivery is synchronous, in
// subscription order, on whichever goroutine produced the event.
type Bus struct {
	mu   sync.Mutex
	subs []func(Event)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *Bus) publish(e Event) {
	b.mu.Lock()
	subs := append(([]func(Event))(nil), b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}
