package audit

import (
	"context"
	"sync"
)

// Store persists audit events. Backends are interchangeable: memory,
// JSONL file, or SQLite.
type Store interface {
	// Write appends a batch of events. A batch is written in order;
	// partial writes must not reorder events.
	Write(ctx context.Context, events []Event) error
	// Query returns events matching the filter in write order.
	Query(ctx context.Context, filter Filter) ([]Event, error)
	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)
}

// MemoryStore keeps audit events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns an in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Write appends the batch.
func (s *MemoryStore) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Query returns filtered events in write order.
func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.Matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of matching events.
func (s *MemoryStore) Count(_ context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events {
		if filter.Matches(ev) {
			count++
		}
	}
	return count, nil
}

// Len returns the total number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
