// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator runs the agent turn loop: plan, act, observe,
// reflect, respond. The planner decides what to do; the orchestrator
// enforces the runtime policy bounds and drives the executor.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/helicon-ai/helicon/pkg/capability"
	"github.com/helicon-ai/helicon/pkg/executor"
	"github.com/helicon-ai/helicon/pkg/session"
)

// Phase names one state of the turn loop.
type Phase string

const (
	PhasePlan    Phase = "plan"
	PhaseAct     Phase = "act"
	PhaseObserve Phase = "observe"
	PhaseReflect Phase = "reflect"
	PhaseRespond Phase = "respond"
)

const exhaustedResponse = "I could not complete the request within the allowed execution budget."

// TurnResult is the outcome of one orchestrated turn. Response is
// always set: a turn that exhausts its iteration or time budget still
// responds, with Exhausted marking the shortfall.
type TurnResult struct {
	Response     string
	Iterations   int
	Observations []Observation
	Exhausted    bool
	Elapsed      time.Duration
}

// Orchestrator drives the turn state machine.
type Orchestrator struct {
	planner Planner
	exec    *executor.Executor

	refreshServers func(ctx context.Context) []session.ServerDescriptor
	memory         Memory
	sandbox        Sandbox
	log            *slog.Logger
	tracer         trace.Tracer
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithServerRefresh installs a hook that reports the current remote
// server descriptors. It runs before every planning phase so the
// capability graph reflects connection state changes mid-turn.
func WithServerRefresh(fn func(ctx context.Context) []session.ServerDescriptor) Option {
	return func(o *Orchestrator) { o.refreshServers = fn }
}

// WithMemory attaches a memory backend passed through to the planner.
func WithMemory(m Memory) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithSandbox attaches a sandbox passed through to the planner.
func WithSandbox(s Sandbox) Option {
	return func(o *Orchestrator) { o.sandbox = s }
}

// WithLogger sets the slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// New creates an orchestrator around a planner and an executor.
func New(planner Planner, exec *executor.Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner: planner,
		exec:    exec,
		log:     slog.Default(),
		tracer:  otel.Tracer("helicon/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one turn for the goal under the session's runtime
// policy. It returns an error only for setup problems (nil planner,
// planner failure); budget exhaustion is a normal TurnResult.
func (o *Orchestrator) Run(ctx context.Context, sc *session.Context, goal string) (*TurnResult, error) {
	if o.planner == nil {
		return nil, fmt.Errorf("orchestrator has no planner")
	}
	if o.exec == nil {
		return nil, fmt.Errorf("orchestrator has no executor")
	}

	policy := sc.Policy
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(
			attribute.String("session.id", sc.SessionID),
			attribute.String("agent.id", sc.AgentID),
		),
	)
	defer span.End()

	start := time.Now()
	result := &TurnResult{}

	maxIterations := policy.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		result.Iterations = iteration

		if ctx.Err() != nil {
			return o.exhaust(sc, result, start, "turn timeout reached"), nil
		}

		graph := o.buildGraph(ctx, sc)
		o.logPhase(sc, PhasePlan, iteration)

		plan, err := o.planner.Plan(ctx, PlannerInput{
			Goal:         goal,
			Capabilities: graph.SchemasForPlanner(),
			Observations: result.Observations,
			Iteration:    iteration,
			Memory:       o.memory,
			Sandbox:      o.sandbox,
		})
		if err != nil {
			return nil, fmt.Errorf("planning iteration %d: %w", iteration, err)
		}

		if plan.Done {
			return o.respond(ctx, sc, result, start, plan.Response), nil
		}
		if len(plan.Steps) == 0 {
			// A planner that neither finishes nor acts is stuck; burn the
			// iteration and let the budget decide.
			o.log.Warn("orchestrator.plan.empty",
				slog.String("session_id", sc.SessionID),
				slog.Int("iteration", iteration),
			)
			continue
		}

		o.logPhase(sc, PhaseAct, iteration)
		batch := o.act(ctx, sc, graph, plan.Steps, policy.MaxConcurrentActions)

		o.logPhase(sc, PhaseObserve, iteration)
		for i, step := range plan.Steps {
			result.Observations = append(result.Observations, Observation{Step: step, Result: batch[i]})
		}

		o.logPhase(sc, PhaseReflect, iteration)
		o.reflect(sc, iteration, batch)
	}

	return o.exhaust(sc, result, start, "iteration budget exhausted"), nil
}

// act executes a batch of steps, bounded by the policy's concurrency
// limit. Results come back in step order regardless of completion
// order; a step that overruns the turn deadline still produces a
// failure result through the executor's audit path.
func (o *Orchestrator) act(ctx context.Context, sc *session.Context, graph *capability.Graph, steps []executor.PlanStep, maxConcurrent int) []executor.ActionResult {
	results := make([]executor.ActionResult, len(steps))
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)
	for i, step := range steps {
		g.Go(func() error {
			results[i] = o.exec.Execute(ctx, sc, graph, step)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) reflect(sc *session.Context, iteration int, batch []executor.ActionResult) {
	succeeded := 0
	for _, r := range batch {
		if r.Success {
			succeeded++
		}
	}
	o.log.Info("orchestrator.reflect",
		slog.String("session_id", sc.SessionID),
		slog.Int("iteration", iteration),
		slog.Int("actions", len(batch)),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", len(batch)-succeeded),
	)
}

func (o *Orchestrator) respond(ctx context.Context, sc *session.Context, result *TurnResult, start time.Time, response string) *TurnResult {
	o.logPhase(sc, PhaseRespond, result.Iterations)
	result.Response = response
	result.Elapsed = time.Since(start)

	if o.memory != nil {
		key := "turn:" + sc.SessionID
		if err := o.memory.Store(ctx, key, response); err != nil {
			o.log.Warn("orchestrator.memory.store.error",
				slog.String("session_id", sc.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}
	return result
}

func (o *Orchestrator) exhaust(sc *session.Context, result *TurnResult, start time.Time, reason string) *TurnResult {
	o.logPhase(sc, PhaseRespond, result.Iterations)
	o.log.Warn("orchestrator.turn.exhausted",
		slog.String("session_id", sc.SessionID),
		slog.Int("iterations", result.Iterations),
		slog.String("reason", reason),
	)
	result.Response = exhaustedResponse
	result.Exhausted = true
	result.Elapsed = time.Since(start)
	return result
}

// buildGraph rebuilds the capability graph for this iteration. Server
// descriptors are refreshed when a hook is installed so tools of a
// server that dropped mid-turn disappear from the planner's view.
func (o *Orchestrator) buildGraph(ctx context.Context, sc *session.Context) *capability.Graph {
	source := sc
	if o.refreshServers != nil {
		source = sc.CloneWithServers(o.refreshServers(ctx))
	}
	graph := capability.NewGraph()
	graph.Build(source)
	return graph
}

func (o *Orchestrator) logPhase(sc *session.Context, phase Phase, iteration int) {
	o.log.Debug("orchestrator.phase",
		slog.String("session_id", sc.SessionID),
		slog.String("phase", string(phase)),
		slog.Int("iteration", iteration),
	)
}
