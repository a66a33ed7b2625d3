// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"

	"github.com/helicon-ai/helicon/pkg/capability"
	"github.com/helicon-ai/helicon/pkg/executor"
)

// PlannerInput is everything the planning phase may see: the goal, the
// planner-facing capability schemas, and the observations accumulated
// so far. The planner never sees backend internals.
type PlannerInput struct {
	Goal         string
	Capabilities []capability.PlannerSchema
	Observations []Observation
	Iteration    int

	Memory  Memory
	Sandbox Sandbox
}

// PlanResult is the planner's answer for one iteration: either a batch
// of steps to execute, or a final response that ends the turn.
type PlanResult struct {
	Steps    []executor.PlanStep
	Done     bool
	Response string
}

// Planner decides what to do next. Implementations are black boxes to
// the runtime; an LLM-backed planner and a scripted one are
// interchangeable here.
type Planner interface {
	Plan(ctx context.Context, input PlannerInput) (PlanResult, error)
}

// Observation pairs an executed step with its outcome for the next
// planning round.
type Observation struct {
	Step   executor.PlanStep
	Result executor.ActionResult
}

// ScriptedPlanner replays a fixed sequence of plan results. Useful in
// tests and demos where the decision sequence is known up front.
type ScriptedPlanner struct {
	Script []PlanResult
	next   int
}

// Plan returns the next scripted result.
func (p *ScriptedPlanner) Plan(_ context.Context, _ PlannerInput) (PlanResult, error) {
	if p.next >= len(p.Script) {
		return PlanResult{}, fmt.Errorf("scripted planner exhausted after %d plans", p.next)
	}
	result := p.Script[p.next]
	p.next++
	return result, nil
}

// PlannerFunc adapts a function into a Planner.
type PlannerFunc func(ctx context.Context, input PlannerInput) (PlanResult, error)

// Plan invokes the function.
func (f PlannerFunc) Plan(ctx context.Context, input PlannerInput) (PlanResult, error) {
	return f(ctx, input)
}
