// Package tools defines the built-in tool interface and a registry the
// action executor dispatches to for local capabilities.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/helicon-ai/helicon/pkg/session"
)

// Tool is a locally implemented capability.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Fn              func(ctx context.Context, args map[string]any) (any, error)
}

func (f Func) Name() string                { return f.ToolName }
func (f Func) Description() string         { return f.ToolDescription }
func (f Func) InputSchema() map[string]any { return f.Schema }

func (f Func) Call(ctx context.Context, args map[string]any) (any, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("tool %q has no implementation", f.ToolName)
	}
	return f.Fn(ctx, args)
}

// Registry holds built-in tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering an existing name replaces it.
func (r *Registry) Register(tool Tool) error {
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	return nil
}

// Call dispatches to the named tool. Unknown names are a defined failure.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q not registered", name)
	}
	return tool.Call(ctx, args)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Descriptors exports the registered tools as session descriptors,
// sorted by name so graph builds see a stable order.
func (r *Registry) Descriptors() []session.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.ToolDescriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, session.ToolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
