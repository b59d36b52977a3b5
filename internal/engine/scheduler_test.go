package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendRecorder struct {
	mu    sync.Mutex
	sends []pairKey
}

func (r *sendRecorder) record(localID string, group FieldGroup) {
	r.mu.Lock()
	r.sends = append(r.sends, pairKey{localID: localID, group: group})
	r.mu.Unlock()
}

func (r *sendRecorder) snapshot() []pairKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pairKey(nil), r.sends...)
}

func TestSchedulerImmediateGroup_SkipsTimer(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(testDelays(), rec.record)
	defer s.Close()

	s.Schedule("e1", GroupPriority)
	s.Drain()

	require.Equal(t, []pairKey{{localID: "e1", group: GroupPriority}}, rec.snapshot())
	assert.False(t, s.timerPending("e1", GroupPriority))
}

func TestSchedulerDebounce_TrailingEdge(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(Delays{Name: 40 * time.Millisecond}, rec.record)
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Schedule("e1", GroupName)
		time.Sleep(10 * time.Millisecond)
	}
	// every re-arm pushed the deadline out; nothing fired yet
	assert.Empty(t, rec.snapshot())

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	s.Drain()
	assert.Len(t, rec.snapshot(), 1, "a burst collapses to exactly one send")
}

func TestSchedulerQueuedPair_NotDuplicated(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(Delays{}, rec.record)
	defer s.Close()

	release := make(chan struct{})
	s.Enqueue(func() { <-release })
	s.Schedule("e1", GroupStatus)
	s.Schedule("e1", GroupStatus)
	s.Schedule("e1", GroupStatus)
	close(release)
	s.Drain()

	assert.Len(t, rec.snapshot(), 1)
}

func TestSchedulerInFlightEdit_Rearms(t *testing.T) {
	rec := &sendRecorder{}
	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	s := NewScheduler(Delays{}, func(localID string, group FieldGroup) {
		rec.record(localID, group)
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
	})
	defer s.Close()

	s.Schedule("e1", GroupStatus)
	<-entered
	// this edit lands while the first send is still running
	s.Schedule("e1", GroupStatus)
	close(release)
	s.Drain()

	assert.Len(t, rec.snapshot(), 2, "the mid-flight edit is resent, never dropped")
}

func TestSchedulerFIFO_AcrossKinds(t *testing.T) {
	var mu sync.Mutex
	var order []string

	s := NewScheduler(Delays{}, func(localID string, _ FieldGroup) {
		mu.Lock()
		order = append(order, "pair:"+localID)
		mu.Unlock()
	})
	defer s.Close()

	release := make(chan struct{})
	s.Enqueue(func() { <-release })

	s.Schedule("e1", GroupPriority)
	s.Enqueue(func() {
		mu.Lock()
		order = append(order, "attachment-delete")
		mu.Unlock()
	})
	s.Schedule("e2", GroupStatus)
	close(release)
	s.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"pair:e1", "attachment-delete", "pair:e2"}, order)
}

func TestSchedulerCancel_DropsPendingWork(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(Delays{Name: 30 * time.Millisecond}, rec.record)
	defer s.Close()

	release := make(chan struct{})
	s.Enqueue(func() { <-release })

	s.Schedule("e1", GroupName)   // armed timer
	s.Schedule("e1", GroupStatus) // queued behind the blocker
	s.Schedule("e2", GroupStatus) // other entity, must survive
	s.Cancel("e1")
	close(release)
	s.Drain()

	time.Sleep(60 * time.Millisecond)
	s.Drain()
	assert.Equal(t, []pairKey{{localID: "e2", group: GroupStatus}}, rec.snapshot())
	assert.False(t, s.timerPending("e1", GroupName))
}

func TestSchedulerFlush_FiresTimersNow(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(Delays{Name: time.Hour, Description: time.Hour}, rec.record)
	defer s.Close()

	s.Schedule("e1", GroupName)
	s.Schedule("e1", GroupDescription)
	s.Schedule("e2", GroupName)

	s.Flush("e1")
	s.Drain()

	sends := rec.snapshot()
	assert.Len(t, sends, 2)
	for _, k := range sends {
		assert.Equal(t, "e1", k.localID)
	}
	assert.True(t, s.timerPending("e2", GroupName), "flush is scoped to one entity")
}

func TestSchedulerClose_FlushesEverything(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(Delays{Name: time.Hour}, rec.record)

	s.Schedule("e1", GroupName)
	s.Schedule("e2", GroupName)
	s.Close()

	assert.Len(t, rec.snapshot(), 2)

	// post-close scheduling is a no-op, not a panic
	s.Schedule("e3", GroupName)
	s.Enqueue(func() { t.Fatal("must not run after close") })
	assert.Len(t, rec.snapshot(), 2)
}
