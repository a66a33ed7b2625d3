// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor dispatches plan steps to the backend that owns the
// named capability: a skill handler, a built-in tool, or a remote
// capability server. The call site is uniform; routing, approval
// gating, timing, and audit emission all happen here.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helicon-ai/helicon/pkg/audit"
	"github.com/helicon-ai/helicon/pkg/capability"
	"github.com/helicon-ai/helicon/pkg/errors"
	"github.com/helicon-ai/helicon/pkg/governance"
	"github.com/helicon-ai/helicon/pkg/session"
	"github.com/helicon-ai/helicon/pkg/skills"
	"github.com/helicon-ai/helicon/pkg/tools"
)

const defaultApprovalTimeout = 60 * time.Second

// PlanStep is one planned action: a capability name plus parameters.
type PlanStep struct {
	ID     string
	Title  string
	Target string
	Params map[string]any
}

// ActionResult is the uniform outcome of one dispatched step. Execute
// always returns a result; failures are data, never panics.
type ActionResult struct {
	ActionID string
	Target   string
	Success  bool
	Output   any
	Error    string
	Code     errors.ErrorCode
	Metadata capability.ExecutionMetadata
	Duration time.Duration
}

// RemoteBackend is the slice of the remote capability client the
// executor dispatches through. *remote.Client satisfies it.
type RemoteBackend interface {
	CallTool(ctx context.Context, serverID, name string, args map[string]any) (any, error)
}

// Executor routes plan steps to their backends.
type Executor struct {
	skills   *skills.Registry
	tools    *tools.Registry
	remote   RemoteBackend
	approval governance.ApprovalHook

	approvalTimeout time.Duration
	auditLog        *audit.Logger
	log             *slog.Logger
	tracer          trace.Tracer
}

// Option configures the executor.
type Option func(*Executor)

// WithSkills sets the skill registry backend.
func WithSkills(r *skills.Registry) Option {
	return func(e *Executor) { e.skills = r }
}

// WithTools sets the built-in tool registry backend.
func WithTools(r *tools.Registry) Option {
	return func(e *Executor) { e.tools = r }
}

// WithRemote sets the remote capability client backend.
func WithRemote(c RemoteBackend) Option {
	return func(e *Executor) { e.remote = c }
}

// WithApprovalHook sets the hook consulted before high-risk actions.
func WithApprovalHook(h governance.ApprovalHook) Option {
	return func(e *Executor) { e.approval = h }
}

// WithApprovalTimeout bounds how long an approval decision may take.
// An expired timeout counts as denial.
func WithApprovalTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.approvalTimeout = d
		}
	}
}

// WithAuditLogger sets the audit logger receiving lifecycle events.
func WithAuditLogger(l *audit.Logger) Option {
	return func(e *Executor) { e.auditLog = l }
}

// WithLogger sets the slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an executor. Backends left unset reject the matching
// capability kind with a configuration error at dispatch time.
func New(opts ...Option) *Executor {
	e := &Executor{
		approvalTimeout: defaultApprovalTimeout,
		log:             slog.Default(),
		tracer:          otel.Tracer("helicon/executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one plan step against the capability graph. It always
// returns an ActionResult: validation failures, denials, backend
// errors, and panics all surface as unsuccessful results with audit
// events, never as Go errors or panics escaping to the caller.
func (e *Executor) Execute(ctx context.Context, sc *session.Context, graph *capability.Graph, step PlanStep) (result ActionResult) {
	actionID := step.ID
	if actionID == "" {
		actionID = uuid.NewString()
	}

	ctx, span := e.tracer.Start(ctx, "Executor.Execute",
		trace.WithAttributes(
			attribute.String("action.id", actionID),
			attribute.String("action.target", step.Target),
		),
	)
	defer span.End()

	identity := sc.Identity()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = e.fail(identity, actionID, step, capability.ExecutionMetadata{},
				errors.CodeInternal, fmt.Sprintf("panic during execution: %v", r), time.Since(start))
		}
		recordAction(ctx, result)
	}()

	if !graph.ValidateAction(step.Target) {
		e.emit(rejectedEvent(identity, actionID, step, "unknown action"))
		e.log.Warn("executor.action.rejected",
			slog.String("action_id", actionID),
			slog.String("target", step.Target),
		)
		return ActionResult{
			ActionID: actionID,
			Target:   step.Target,
			Error:    fmt.Sprintf("unknown action %q", step.Target),
			Code:     errors.CodeInvalidAction,
			Duration: time.Since(start),
		}
	}

	resolved, _ := graph.Get(step.Target)
	highRisk := sc.Policy.IsHighRisk(step.Target)
	approvalRequired := sc.Policy.RequireApproval && highRisk
	md := capability.MetadataFor(resolved, highRisk, approvalRequired)

	if approvalRequired {
		decision := e.requestApproval(ctx, identity, actionID, step, md)
		if !decision.IsAllowed() {
			// The approval.denied event is the terminal record for a
			// denial; the action never started, so no failure event.
			return ActionResult{
				ActionID: actionID,
				Target:   step.Target,
				Error:    "approval denied: " + decision.Reason,
				Code:     errors.CodeApprovalDenied,
				Metadata: md,
				Duration: time.Since(start),
			}
		}
	}

	startedEv := audit.NewEvent(audit.EventActionStarted, identity, actionID, step.Target)
	startedEv.Params = step.Params
	startedEv.Metadata = &md
	e.emit(startedEv)

	output, err := e.dispatch(ctx, resolved, step)
	elapsed := time.Since(start)

	if err != nil {
		// Untyped errors out of a backend are backend failures; typed
		// ones keep their own classification.
		code := errors.CodeBackendFailure
		if he, ok := err.(*errors.HeliconError); ok {
			code = he.Code
		}
		return e.fail(identity, actionID, step, md, code, err.Error(), elapsed)
	}

	completedEv := audit.NewEvent(audit.EventActionCompleted, identity, actionID, step.Target)
	completedEv.Success = true
	completedEv.DurationMs = float64(elapsed) / float64(time.Millisecond)
	completedEv.Metadata = &md
	e.emit(completedEv)

	e.log.Info("executor.action.completed",
		slog.String("action_id", actionID),
		slog.String("target", step.Target),
		slog.String("kind", string(md.Kind)),
		slog.Duration("duration", elapsed),
	)
	return ActionResult{
		ActionID: actionID,
		Target:   step.Target,
		Success:  true,
		Output:   output,
		Metadata: md,
		Duration: elapsed,
	}
}

// dispatch routes to the backend owning the capability kind.
func (e *Executor) dispatch(ctx context.Context, resolved capability.Capability, step PlanStep) (any, error) {
	switch resolved.Kind {
	case capability.KindSkill:
		if e.skills == nil {
			return nil, errors.New(errors.CodeConfigError, "skill backend not configured", nil).
				WithContext("target", step.Target)
		}
		return e.skills.Execute(ctx, step.Target, step.Params)
	case capability.KindTool:
		if e.tools == nil {
			return nil, errors.New(errors.CodeConfigError, "tool backend not configured", nil).
				WithContext("target", step.Target)
		}
		return e.tools.Call(ctx, step.Target, step.Params)
	case capability.KindRemote:
		if e.remote == nil {
			return nil, errors.New(errors.CodeConfigError, "remote backend not configured", nil).
				WithContext("target", step.Target)
		}
		return e.remote.CallTool(ctx, resolved.ServerID, step.Target, step.Params)
	default:
		return nil, errors.New(errors.CodeInternal, "unknown capability kind", nil).
			WithContext("kind", string(resolved.Kind))
	}
}

// requestApproval runs the approval hook under a bounded deadline and
// records the request/grant/deny trail. A missing hook or an expired
// deadline both count as denial.
func (e *Executor) requestApproval(ctx context.Context, identity session.Identity, actionID string, step PlanStep, md capability.ExecutionMetadata) governance.Decision {
	requestedEv := audit.NewEvent(audit.EventApprovalRequested, identity, actionID, step.Target)
	requestedEv.Params = step.Params
	requestedEv.Metadata = &md
	e.emit(requestedEv)
	recordApproval(ctx, step.Target, "requested")

	var decision governance.Decision
	if e.approval == nil {
		decision = governance.Deny("no approval hook configured")
	} else {
		approvalCtx, cancel := context.WithTimeout(ctx, e.approvalTimeout)
		decision = e.approval.Request(approvalCtx, governance.Request{
			ActionName: step.Target,
			Params:     step.Params,
			Metadata:   md.Strings(),
		})
		cancel()
	}

	if decision.IsAllowed() {
		e.emit(audit.NewEvent(audit.EventApprovalGranted, identity, actionID, step.Target))
		recordApproval(ctx, step.Target, "granted")
	} else {
		deniedEv := audit.NewEvent(audit.EventApprovalDenied, identity, actionID, step.Target)
		deniedEv.Error = decision.Reason
		e.emit(deniedEv)
		recordApproval(ctx, step.Target, "denied")
		e.log.Warn("executor.approval.denied",
			slog.String("action_id", actionID),
			slog.String("target", step.Target),
			slog.String("reason", decision.Reason),
		)
	}
	return decision
}

func (e *Executor) fail(identity session.Identity, actionID string, step PlanStep, md capability.ExecutionMetadata, code errors.ErrorCode, msg string, elapsed time.Duration) ActionResult {
	failedEv := audit.NewEvent(audit.EventActionFailed, identity, actionID, step.Target)
	failedEv.Error = msg
	failedEv.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if md.Kind != "" {
		failedEv.Metadata = &md
	}
	e.emit(failedEv)

	e.log.Error("executor.action.failed",
		slog.String("action_id", actionID),
		slog.String("target", step.Target),
		slog.String("code", string(code)),
		slog.String("error", msg),
	)
	return ActionResult{
		ActionID: actionID,
		Target:   step.Target,
		Error:    msg,
		Code:     code,
		Metadata: md,
		Duration: elapsed,
	}
}

func (e *Executor) emit(ev audit.Event) {
	if e.auditLog != nil {
		e.auditLog.Log(ev)
	}
}

func rejectedEvent(identity session.Identity, actionID string, step PlanStep, reason string) audit.Event {
	ev := audit.NewEvent(audit.EventActionRejected, identity, actionID, step.Target)
	ev.Error = reason
	ev.Params = step.Params
	return ev
}
