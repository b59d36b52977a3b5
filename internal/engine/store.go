package engine

import (
	"sort"
	"sync"

	"cadence/internal/model"
)

// SortMode selects the user-facing order of ListOrdered.
type SortMode string

const (
	SortByStartDate SortMode = "startDate"
	SortByEndDate   SortMode = "endDate"
	SortByFrequency SortMode = "frequency"
)

// Store holds every locally-known recurring task keyed by local id. It owns
// no transport logic; it is the single serialization point for entity
// mutation — every component goes through Mutate/Create/Remove.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	nextSeq  int
	clock    Clock
}

func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = RealClock{}
	}
	return &Store{
		entities: map[string]*Entity{},
		clock:    clock,
	}
}

// Create adds a new draft. No network contact happens here.
func (s *Store) Create(fields model.RecurringTask) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	fields.ID = ""
	fields.CreatedAt = now
	fields.UpdatedAt = now

	e := &Entity{
		LocalID:   newLocalID(now),
		Lifecycle: LifecycleDraft,
		Fields:    fields,
		Dirty:     map[FieldGroup]bool{},
		seq:       s.nextSeq,
	}
	s.nextSeq++
	s.entities[e.LocalID] = e
	return e.clone()
}

func (s *Store) Get(localID string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[localID]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// Mutate applies fn to the stored entity under the store lock and returns
// the resulting snapshot. fn must not call back into the store.
func (s *Store) Mutate(localID string, fn func(*Entity)) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[localID]
	if !ok {
		return Entity{}, false
	}
	fn(e)
	e.Fields.UpdatedAt = s.clock.Now()
	return e.clone(), true
}

func (s *Store) MarkDirty(localID string, group FieldGroup) (Entity, bool) {
	return s.Mutate(localID, func(e *Entity) {
		e.Dirty[group] = true
		if e.Lifecycle == LifecyclePersisted {
			e.Lifecycle = LifecycleDirty
		}
	})
}

func (s *Store) ClearDirty(localID string, group FieldGroup) (Entity, bool) {
	return s.Mutate(localID, func(e *Entity) {
		delete(e.Dirty, group)
		if e.Lifecycle == LifecycleDirty && len(e.Dirty) == 0 {
			e.Lifecycle = LifecyclePersisted
		}
	})
}

func (s *Store) MarkDeleting(localID string) (Entity, bool) {
	return s.Mutate(localID, func(e *Entity) {
		e.Lifecycle = LifecycleDeleting
	})
}

func (s *Store) Remove(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[localID]
	if !ok {
		return false
	}
	e.Lifecycle = LifecycleDeleted
	delete(s.entities, localID)
	return true
}

// List returns every entity in insertion order.
func (s *Store) List() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ListOrdered returns drafts first (newest draft on top), then the remaining
// entities in the selected sort. Equal keys preserve insertion order so rows
// never jitter while the user edits.
func (s *Store) ListOrdered(mode SortMode) []Entity {
	all := s.List()

	drafts := make([]Entity, 0, len(all))
	rest := make([]Entity, 0, len(all))
	for _, e := range all {
		if e.Lifecycle == LifecycleDraft {
			drafts = append(drafts, e)
		} else {
			rest = append(rest, e)
		}
	}

	sort.SliceStable(drafts, func(i, j int) bool { return drafts[i].seq > drafts[j].seq })

	key := func(e Entity) string {
		if mode == SortByEndDate {
			return e.Fields.EndDate
		}
		return e.Fields.StartDate
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if mode == SortByFrequency {
			return rest[i].Fields.Frequency.Rank() > rest[j].Fields.Frequency.Rank()
		}
		ki, kj := key(rest[i]), key(rest[j])
		switch {
		case ki == "" && kj == "":
			return false
		case ki == "":
			return false
		case kj == "":
			return true
		default:
			return ki < kj
		}
	})

	return append(drafts, rest...)
}

// SelectedIDs returns local ids with the selection flag set, in insertion
// order.
func (s *Store) SelectedIDs() []string {
	out := []string{}
	for _, e := range s.List() {
		if e.Selected {
			out = append(out, e.LocalID)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
