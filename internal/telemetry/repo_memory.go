package telemetry

import (
	"encoding/json"
	"sync"
	"time"
)

// Repository stores sync-activity events.
type Repository interface {
	RecordEvent(eventType EventType, metadata EventMetadata) error
	GetEvents(since time.Time, eventTypes []EventType) ([]Event, error)
	Clear() error
}

// maxRetained bounds the in-memory log; the oldest events fall off first.
const maxRetained = 10000

type MemoryRepository struct {
	mu     sync.RWMutex
	events []Event
	nextID int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (r *MemoryRepository) RecordEvent(eventType EventType, metadata EventMetadata) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Event{
		ID:        r.nextID,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  string(encoded),
	})
	r.nextID++
	if excess := len(r.events) - maxRetained; excess > 0 {
		r.events = append([]Event(nil), r.events[excess:]...)
	}
	return nil
}

func (r *MemoryRepository) GetEvents(since time.Time, eventTypes []EventType) ([]Event, error) {
	wanted := func(EventType) bool { return true }
	if len(eventTypes) > 0 {
		set := make(map[EventType]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			set[t] = struct{}{}
		}
		wanted = func(t EventType) bool {
			_, ok := set[t]
			return ok
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0)
	for _, ev := range r.events {
		if ev.Timestamp.Before(since) || !wanted(ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *MemoryRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
	r.nextID = 1
	return nil
}
