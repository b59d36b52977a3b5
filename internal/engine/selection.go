package engine

import "sync"

// Selection tracks the multi-select set and the entity currently open in the
// detail panel. It holds local ids only; nothing here is persisted.
type Selection struct {
	mu   sync.Mutex
	ids  map[string]bool
	open string
}

func newSelection() *Selection {
	return &Selection{ids: map[string]bool{}}
}

// Toggle flips the id and reports the new state.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[id] {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = true
	return true
}

func (s *Selection) Set(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.ids[id] = true
	} else {
		delete(s.ids, id)
	}
}

func (s *Selection) Remove(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *Selection) Clear() {
	s.mu.Lock()
	s.ids = map[string]bool{}
	s.mu.Unlock()
}

func (s *Selection) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) SetOpenPanel(id string) {
	s.mu.Lock()
	s.open = id
	s.mu.Unlock()
}

func (s *Selection) OpenPanel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}
