// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

// Memory is the narrow surface the runtime holds onto a memory
// backend. Anything richer (vector search, summarization) lives behind
// the implementation.
type Memory interface {
	Fetch(ctx context.Context, key string) (any, error)
	Store(ctx context.Context, key string, value any) error
}

// Sandbox runs planner-produced code in an isolated environment.
type Sandbox interface {
	Run(ctx context.Context, code string) (string, error)
}

// InMemoryStore is a process-local Memory for tests and single-node use.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewInMemoryStore returns an empty in-process memory.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]any)}
}

// Fetch returns the stored value for key.
func (m *InMemoryStore) Fetch(_ context.Context, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("memory key %q not found", key)
	}
	return value, nil
}

// Store saves value under key, replacing any previous value.
func (m *InMemoryStore) Store(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
