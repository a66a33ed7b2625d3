// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package session defines the per-turn context bundle the runtime
// operates on: identity, agent configuration, the descriptors of every
// capability the agent may use, and the runtime policy. A SessionContext
// is built once per turn and treated as immutable afterwards except for
// the opaque metadata bag.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ConnectionState describes the connection status of a remote capability server.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// AgentConfig carries the model settings of the agent driving the turn.
type AgentConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	SystemHint  string
}

// RuntimePolicy bounds a turn's execution. It is supplied per
// agent/tenant by the surrounding application.
type RuntimePolicy struct {
	MaxIterations        int
	Timeout              time.Duration
	MaxConcurrentActions int
	RequireApproval      bool
	HighRiskActions      []string
}

// DefaultRuntimePolicy returns conservative turn bounds.
func DefaultRuntimePolicy() RuntimePolicy {
	return RuntimePolicy{
		MaxIterations:        10,
		Timeout:              120 * time.Second,
		MaxConcurrentActions: 4,
		RequireApproval:      true,
	}
}

// IsHighRisk reports whether the named action is in the high-risk list.
func (p RuntimePolicy) IsHighRisk(name string) bool {
	for _, risky := range p.HighRiskActions {
		if risky == name {
			return true
		}
	}
	return false
}

// SkillDescriptor declares a skill available to the session.
type SkillDescriptor struct {
	Name        string
	Description string
	Version     string
	Source      string
	InputSchema map[string]any
}

// ToolDescriptor declares a built-in tool available to the session.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// RemoteToolDescriptor declares a tool exposed by a remote capability server.
type RemoteToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ServerDescriptor declares a remote capability server and its tools.
// State reflects the connection status at context build time; tools of
// a server that is not connected are invisible to the planner.
type ServerDescriptor struct {
	ID    string
	Name  string
	State ConnectionState
	Tools []RemoteToolDescriptor
}

// Context is the immutable per-turn bundle of identity, configuration,
// capability descriptors, and policy.
type Context struct {
	TenantID  string
	UserID    string
	AgentID   string
	SessionID string

	Agent   AgentConfig
	Skills  []SkillDescriptor
	Tools   []ToolDescriptor
	Servers []ServerDescriptor
	Policy  RuntimePolicy

	mu       sync.RWMutex
	metadata map[string]any
}

// New creates a session context and validates descriptor uniqueness.
func New(tenantID, userID, agentID, sessionID string, opts ...Option) (*Context, error) {
	sc := &Context{
		TenantID:  tenantID,
		UserID:    userID,
		AgentID:   agentID,
		SessionID: sessionID,
		Policy:    DefaultRuntimePolicy(),
		metadata:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Option configures a session context during construction.
type Option func(*Context)

// WithAgentConfig sets the agent model configuration.
func WithAgentConfig(cfg AgentConfig) Option {
	return func(sc *Context) { sc.Agent = cfg }
}

// WithPolicy sets the runtime policy.
func WithPolicy(policy RuntimePolicy) Option {
	return func(sc *Context) { sc.Policy = policy }
}

// WithSkills sets the skill descriptors.
func WithSkills(skills []SkillDescriptor) Option {
	return func(sc *Context) { sc.Skills = append([]SkillDescriptor(nil), skills...) }
}

// WithTools sets the built-in tool descriptors.
func WithTools(tools []ToolDescriptor) Option {
	return func(sc *Context) { sc.Tools = append([]ToolDescriptor(nil), tools...) }
}

// WithServers sets the remote capability server descriptors.
func WithServers(servers []ServerDescriptor) Option {
	return func(sc *Context) { sc.Servers = append([]ServerDescriptor(nil), servers...) }
}

// Validate checks that identity fields are present and that every
// descriptor name resolves to exactly one entry within its own list.
// Cross-kind collisions are legal; the capability graph resolves them
// with last-registered-wins.
func (sc *Context) Validate() error {
	if strings.TrimSpace(sc.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(sc.AgentID) == "" {
		return fmt.Errorf("agent id is required")
	}
	if strings.TrimSpace(sc.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	seen := make(map[string]bool, len(sc.Skills))
	for _, skill := range sc.Skills {
		if strings.TrimSpace(skill.Name) == "" {
			return fmt.Errorf("skill descriptor with empty name")
		}
		if seen[skill.Name] {
			return fmt.Errorf("duplicate skill descriptor %q", skill.Name)
		}
		seen[skill.Name] = true
	}

	seen = make(map[string]bool, len(sc.Tools))
	for _, tool := range sc.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return fmt.Errorf("tool descriptor with empty name")
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool descriptor %q", tool.Name)
		}
		seen[tool.Name] = true
	}

	servers := make(map[string]bool, len(sc.Servers))
	for _, server := range sc.Servers {
		if strings.TrimSpace(server.ID) == "" {
			return fmt.Errorf("server descriptor with empty id")
		}
		if servers[server.ID] {
			return fmt.Errorf("duplicate server descriptor %q", server.ID)
		}
		servers[server.ID] = true
		tools := make(map[string]bool, len(server.Tools))
		for _, tool := range server.Tools {
			if strings.TrimSpace(tool.Name) == "" {
				return fmt.Errorf("server %q exposes a tool with empty name", server.ID)
			}
			if tools[tool.Name] {
				return fmt.Errorf("server %q exposes duplicate tool %q", server.ID, tool.Name)
			}
			tools[tool.Name] = true
		}
	}
	return nil
}

// SetMetadata stores an opaque metadata value. This is the only
// mutation allowed after construction.
func (sc *Context) SetMetadata(key string, value any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.metadata == nil {
		sc.metadata = make(map[string]any)
	}
	sc.metadata[key] = value
}

// Metadata returns the metadata value for key.
func (sc *Context) Metadata(key string) (any, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	value, ok := sc.metadata[key]
	return value, ok
}

// CloneWithServers returns a copy of the context with the server
// descriptors replaced. The orchestrator uses this to refresh remote
// connection state between iterations without mutating the original.
func (sc *Context) CloneWithServers(servers []ServerDescriptor) *Context {
	clone := &Context{
		TenantID:  sc.TenantID,
		UserID:    sc.UserID,
		AgentID:   sc.AgentID,
		SessionID: sc.SessionID,
		Agent:     sc.Agent,
		Skills:    sc.Skills,
		Tools:     sc.Tools,
		Servers:   append([]ServerDescriptor(nil), servers...),
		Policy:    sc.Policy,
		metadata:  make(map[string]any),
	}
	sc.mu.RLock()
	for k, v := range sc.metadata {
		clone.metadata[k] = v
	}
	sc.mu.RUnlock()
	return clone
}

// Identity returns the tenant/user/agent/session identity tuple.
func (sc *Context) Identity() Identity {
	return Identity{
		TenantID:  sc.TenantID,
		UserID:    sc.UserID,
		AgentID:   sc.AgentID,
		SessionID: sc.SessionID,
	}
}

// Identity is the full session identity stamped on every audit event.
type Identity struct {
	TenantID  string
	UserID    string
	AgentID   string
	SessionID string
}
