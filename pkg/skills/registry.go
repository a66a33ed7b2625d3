// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/helicon-ai/helicon/pkg/session"
)

// Handler executes a skill with the given arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry holds executable skills keyed by name.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]SkillSpec
	handlers map[string]Handler
}

// NewRegistry returns an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:    make(map[string]SkillSpec),
		handlers: make(map[string]Handler),
	}
}

// Register adds a skill with its handler. Registering an existing name
// replaces the previous entry.
func (r *Registry) Register(spec SkillSpec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	if handler == nil {
		return fmt.Errorf("skill %q: handler is required", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	r.handlers[spec.Name] = handler
	return nil
}

// Execute runs the named skill. Unknown names are a defined failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("skill %q not registered", name)
	}
	return handler(ctx, args)
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (SkillSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Descriptors exports the registered skills as session descriptors,
// sorted by name so graph builds see a stable order.
func (r *Registry) Descriptors() []session.SkillDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.SkillDescriptor, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, session.SkillDescriptor{
			Name:        spec.Name,
			Description: spec.Description,
			Version:     spec.Version,
			Source:      spec.Source,
			InputSchema: spec.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}
