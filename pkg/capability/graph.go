// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"github.com/helicon-ai/helicon/pkg/session"
)

// Graph is the capability set derived from one session context. It is
// rebuilt per turn and owned exclusively by that turn's orchestration
// run, so it carries no locking.
type Graph struct {
	byName map[string]Capability
	order  []string
}

// NewGraph returns an empty graph. Call Build before querying it.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]Capability)}
}

// Build derives capabilities from the session context, fully replacing
// prior state. Registration order is skills, then built-in tools, then
// remote servers in descriptor order; on a name collision the
// last-registered capability wins. Tools of servers that are not
// connected are excluded entirely.
func (g *Graph) Build(sc *session.Context) {
	g.byName = make(map[string]Capability)
	g.order = g.order[:0]

	for _, skill := range sc.Skills {
		g.register(Capability{
			Kind:        KindSkill,
			Name:        skill.Name,
			Description: skill.Description,
			Version:     skill.Version,
			Source:      skill.Source,
			InputSchema: skill.InputSchema,
		})
	}

	for _, tool := range sc.Tools {
		g.register(Capability{
			Kind:        KindTool,
			Name:        tool.Name,
			Description: tool.Description,
			Source:      "local",
			InputSchema: tool.InputSchema,
		})
	}

	for _, server := range sc.Servers {
		if server.State != session.StateConnected {
			continue
		}
		for _, tool := range server.Tools {
			g.register(Capability{
				Kind:        KindRemote,
				Name:        tool.Name,
				Description: tool.Description,
				Source:      "remote",
				InputSchema: tool.InputSchema,
				ServerID:    server.ID,
				ServerName:  server.Name,
			})
		}
	}
}

func (g *Graph) register(c Capability) {
	if _, exists := g.byName[c.Name]; !exists {
		g.order = append(g.order, c.Name)
	}
	// Last registered wins; the name keeps its original position so
	// rebuilds stay deterministic.
	g.byName[c.Name] = c
}

// ValidateAction reports whether name resolves to exactly one
// registered capability.
func (g *Graph) ValidateAction(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// Get returns the capability registered under name.
func (g *Graph) Get(name string) (Capability, bool) {
	c, ok := g.byName[name]
	return c, ok
}

// List returns all capabilities in registration order.
func (g *Graph) List() []Capability {
	out := make([]Capability, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.byName[name])
	}
	return out
}

// ByKind returns capabilities of the given kind in registration order.
func (g *Graph) ByKind(kind Kind) []Capability {
	var out []Capability
	for _, name := range g.order {
		if c := g.byName[name]; c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// SchemasForPlanner returns the planner-facing schema list. This is
// the only view the planning phase may see.
func (g *Graph) SchemasForPlanner() []PlannerSchema {
	out := make([]PlannerSchema, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.byName[name].Schema())
	}
	return out
}

// Len returns the number of registered capabilities.
func (g *Graph) Len() int {
	return len(g.byName)
}
