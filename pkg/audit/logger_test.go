package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/helicon-ai/helicon/pkg/session"
)

var testIdentity = session.Identity{
	TenantID:  "tenant-1",
	UserID:    "user-1",
	AgentID:   "agent-1",
	SessionID: "session-1",
}

func makeEvent(eventType EventType, actionID string) Event {
	return NewEvent(eventType, testIdentity, actionID, "search_web")
}

// failingStore fails the first N writes, then delegates to memory.
type failingStore struct {
	mu       sync.Mutex
	failures int
	inner    *MemoryStore
	writes   int
}

func (s *failingStore) Write(ctx context.Context, events []Event) error {
	s.mu.Lock()
	s.writes++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("storage unavailable")
	}
	return s.inner.Write(ctx, events)
}

func (s *failingStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return s.inner.Query(ctx, filter)
}

func (s *failingStore) Count(ctx context.Context, filter Filter) (int, error) {
	return s.inner.Count(ctx, filter)
}

func TestFlushWritesAndClears(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, WithBatchSize(100))

	logger.Log(makeEvent(EventActionStarted, "a1"))
	logger.Log(makeEvent(EventActionCompleted, "a1"))
	if store.Len() != 0 {
		t.Fatalf("events must stay buffered before flush")
	}
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 stored events, got %d", store.Len())
	}
	if logger.Pending() != 0 {
		t.Fatalf("buffer must be cleared after successful flush")
	}
}

func TestBatchThresholdTriggersFlush(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, WithBatchSize(3))

	// Not started: threshold flush happens inline.
	logger.Log(makeEvent(EventActionStarted, "a1"))
	logger.Log(makeEvent(EventActionStarted, "a2"))
	if store.Len() != 0 {
		t.Fatalf("threshold not reached yet")
	}
	logger.Log(makeEvent(EventActionStarted, "a3"))
	if store.Len() != 3 {
		t.Fatalf("expected threshold flush, stored %d", store.Len())
	}
}

func TestFailedWriteRetainsEvents(t *testing.T) {
	store := &failingStore{failures: 1, inner: NewMemoryStore()}
	logger := NewLogger(store, WithBatchSize(100))

	logger.Log(makeEvent(EventActionStarted, "a1"))
	logger.Log(makeEvent(EventActionFailed, "a1"))

	if err := logger.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	if logger.Pending() != 2 {
		t.Fatalf("failed write must retain events, pending=%d", logger.Pending())
	}

	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	events, err := logger.Query(context.Background(), Filter{ActionID: "a1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both events after retry, got %d", len(events))
	}
	if events[0].Type != EventActionStarted || events[1].Type != EventActionFailed {
		t.Fatalf("order lost across retry: %v %v", events[0].Type, events[1].Type)
	}
}

func TestRetentionCutoffDropsOldest(t *testing.T) {
	store := &failingStore{failures: 1000, inner: NewMemoryStore()}
	logger := NewLogger(store, WithBatchSize(1000), WithRetentionLimit(5))

	for i := 0; i < 8; i++ {
		logger.Log(makeEvent(EventActionStarted, "a1"))
		_ = logger.Flush(context.Background())
	}
	if logger.Pending() != 5 {
		t.Fatalf("expected buffer capped at 5, got %d", logger.Pending())
	}
	if logger.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", logger.Dropped())
	}
}

func TestCausalOrderSurvivesBatching(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, WithBatchSize(2))

	sequence := []EventType{
		EventApprovalRequested,
		EventApprovalGranted,
		EventActionStarted,
		EventActionCompleted,
	}
	for _, eventType := range sequence {
		logger.Log(makeEvent(eventType, "a1"))
	}
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	events, err := logger.Query(context.Background(), Filter{ActionID: "a1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != len(sequence) {
		t.Fatalf("expected %d events, got %d", len(sequence), len(events))
	}
	for i, eventType := range sequence {
		if events[i].Type != eventType {
			t.Fatalf("event %d out of order: got %s want %s", i, events[i].Type, eventType)
		}
	}
}

func TestBackgroundFlushLoop(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, WithFlushInterval(10*time.Millisecond), WithBatchSize(1000))
	logger.Start()
	defer func() { _ = logger.Stop(context.Background()) }()

	logger.Log(makeEvent(EventActionStarted, "a1"))

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 1 {
		t.Fatalf("background flush did not run")
	}
}

func TestStopPerformsFinalFlush(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store, WithFlushInterval(time.Hour), WithBatchSize(1000))
	logger.Start()

	logger.Log(makeEvent(EventActionStarted, "a1"))
	if err := logger.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("stop must flush remaining events")
	}
}

func TestQueryFilters(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store)

	completed := makeEvent(EventActionCompleted, "a1")
	completed.Success = true
	logger.Log(makeEvent(EventActionStarted, "a1"))
	logger.Log(completed)
	failed := makeEvent(EventActionFailed, "a2")
	failed.Error = "boom"
	logger.Log(failed)
	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	success := true
	events, err := logger.Query(context.Background(), Filter{TenantID: "tenant-1", Success: &success})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventActionCompleted {
		t.Fatalf("unexpected filtered events: %+v", events)
	}

	count, err := logger.Count(context.Background(), Filter{SessionID: "session-1"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 events, got %d", count)
	}
}
