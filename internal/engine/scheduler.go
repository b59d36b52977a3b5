package engine

import (
	"sync"
	"time"
)

// Delays are the trailing-debounce windows per field group. Groups driven by
// discrete controls (frequency, dates, priority, status, assignees, project)
// always commit immediately and are not configurable.
type Delays struct {
	Name           time.Duration
	Description    time.Duration
	AllocatedHours time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Name:           300 * time.Millisecond,
		Description:    300 * time.Millisecond,
		AllocatedHours: time.Second,
	}
}

func (d Delays) For(group FieldGroup) time.Duration {
	switch group {
	case GroupName:
		return d.Name
	case GroupDescription:
		return d.Description
	case GroupAllocatedHours:
		return d.AllocatedHours
	default:
		return 0
	}
}

type pairKey struct {
	localID string
	group   FieldGroup
}

type job struct {
	key  pairKey
	pair bool
	run  func()
}

// Scheduler coalesces bursts of edits to one (entity, field group) pair into
// a single remote write. Every timer lives in an explicit per-pair map owned
// by this instance; there is no package-level timer state.
//
// All remote work — pair commits, attachment operations, bulk deletes —
// drains through one worker goroutine in FIFO order. That single worker is
// what makes per-pair commits strictly ordered and lets attachment deletes
// settle before any later attachment-affecting operation runs.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	delays Delays
	send   func(localID string, group FieldGroup)

	timers   map[pairKey]*time.Timer
	queued   map[pairKey]bool
	inFlight map[pairKey]bool
	rearm    map[pairKey]bool
	queue    []job
	active   int
	closed   bool
	done     chan struct{}
}

// NewScheduler starts the commit worker. send is invoked once per fired
// pair, with the latest local value read at send time.
func NewScheduler(delays Delays, send func(localID string, group FieldGroup)) *Scheduler {
	s := &Scheduler{
		delays:   delays,
		send:     send,
		timers:   map[pairKey]*time.Timer{},
		queued:   map[pairKey]bool{},
		inFlight: map[pairKey]bool{},
		rearm:    map[pairKey]bool{},
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.worker()
	return s
}

func (s *Scheduler) worker() {
	defer close(s.done)
	s.mu.Lock()
	for {
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue = s.queue[1:]
		if j.pair {
			if !s.queued[j.key] {
				// cancelled while waiting in the queue
				continue
			}
			s.queued[j.key] = false
			s.inFlight[j.key] = true
		}
		s.active++
		s.mu.Unlock()

		if j.pair {
			s.send(j.key.localID, j.key.group)
		} else {
			j.run()
		}

		s.mu.Lock()
		s.active--
		if j.pair {
			s.inFlight[j.key] = false
			if s.rearm[j.key] {
				// an edit arrived mid-flight; resend with the value
				// current at that send, never reordered or dropped
				delete(s.rearm, j.key)
				s.queued[j.key] = true
				s.queue = append(s.queue, job{key: j.key, pair: true})
			}
		}
		s.cond.Broadcast()
	}
}

// Schedule arms (or re-arms, trailing debounce) the pair's timer. Immediate
// groups skip the timer and go straight to the queue.
func (s *Scheduler) Schedule(localID string, group FieldGroup) {
	key := pairKey{localID: localID, group: group}
	delay := s.delays.For(group)
	if delay <= 0 {
		s.fire(key)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if t := s.timers[key]; t != nil {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		s.fire(key)
	})
	s.mu.Unlock()
}

func (s *Scheduler) fire(key pairKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.inFlight[key] {
		s.rearm[key] = true
		return
	}
	if s.queued[key] {
		return
	}
	s.queued[key] = true
	s.queue = append(s.queue, job{key: key, pair: true})
	s.cond.Broadcast()
}

// Enqueue appends a one-off operation (attachment register/delete, bulk
// delete, active toggle) behind everything already queued.
func (s *Scheduler) Enqueue(run func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, job{run: run})
	s.cond.Broadcast()
}

// Flush fires every pending timer for the entity now. Call Drain afterwards
// to wait for the resulting commits.
func (s *Scheduler) Flush(localID string) {
	s.mu.Lock()
	keys := make([]pairKey, 0, len(s.timers))
	for k, t := range s.timers {
		if k.localID != localID {
			continue
		}
		t.Stop()
		delete(s.timers, k)
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.fire(k)
	}
}

// Cancel drops every pending timer and queued commit for the entity without
// sending. Only for entities being discarded unsaved or deleted.
func (s *Scheduler) Cancel(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		if k.localID != localID {
			continue
		}
		t.Stop()
		delete(s.timers, k)
	}
	for k := range s.queued {
		if k.localID == localID {
			s.queued[k] = false
		}
	}
	for k := range s.rearm {
		if k.localID == localID {
			delete(s.rearm, k)
		}
	}
}

// Drain blocks until the queue is empty and no job is running. Armed timers
// are not waited on; flush first if they must fire.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	for len(s.queue) > 0 || s.active > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Close flushes every pending timer, waits for the queue to settle and stops
// the worker.
func (s *Scheduler) Close() {
	s.mu.Lock()
	keys := make([]pairKey, 0, len(s.timers))
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.fire(k)
	}
	s.Drain()

	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) timerPending(localID string, group FieldGroup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[pairKey{localID: localID, group: group}]
	return ok
}
