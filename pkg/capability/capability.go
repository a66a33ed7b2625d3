// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability builds the queryable set of callable things a
// session may invoke: skills, built-in tools, and tools exposed by
// connected remote capability servers. The graph is the only source of
// truth for "is this action allowed" and for what the planner sees.
package capability

// Kind discriminates the capability tagged union.
type Kind string

const (
	KindSkill  Kind = "skill"
	KindTool   Kind = "tool"
	KindRemote Kind = "remote"
)

// Capability is one callable thing, uniformly typed across the three
// backend kinds. ServerID/ServerName are set only for KindRemote.
type Capability struct {
	Kind        Kind
	Name        string
	Description string
	Version     string
	Source      string
	InputSchema map[string]any

	ServerID   string
	ServerName string
}

// PlannerSchema is the planner-facing view of a capability. Only the
// name, description, and parameter schema are exposed; backend details
// never reach the planner.
type PlannerSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schema returns the planner-facing projection of the capability.
func (c Capability) Schema() PlannerSchema {
	params := c.InputSchema
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return PlannerSchema{
		Name:        c.Name,
		Description: c.Description,
		Parameters:  params,
	}
}
