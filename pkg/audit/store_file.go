package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore appends audit events to a JSON-lines file. Queries read the
// whole file; this backend targets small deployments and debugging.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a JSONL-backed audit store at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	_ = f.Close()
	return &FileStore{path: path}, nil
}

// Write appends the batch, one JSON object per line.
func (s *FileStore) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write audit event: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush audit file: %w", err)
	}
	return f.Sync()
}

// Query scans the file and returns matching events in write order.
func (s *FileStore) Query(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		if !filter.Matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit file: %w", err)
	}
	return out, nil
}

// Count returns the number of matching events.
func (s *FileStore) Count(ctx context.Context, filter Filter) (int, error) {
	limitless := filter
	limitless.Limit = 0
	events, err := s.Query(ctx, limitless)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}
