// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration for the runtime:
// trace-aware logging, exporter setup, and span attribute helpers.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Helicon runtime telemetry.
const (
	// Identity attributes
	AttrTenantID  = "helicon.tenant.id"
	AttrAgentID   = "helicon.agent.id"
	AttrSessionID = "helicon.session.id"

	// Action attributes
	AttrActionID         = "helicon.action.id"
	AttrActionTarget     = "helicon.action.target"
	AttrActionKind       = "helicon.action.kind"
	AttrActionSuccess    = "helicon.action.success"
	AttrActionDurationMs = "helicon.action.duration_ms"

	// Approval attributes
	AttrApprovalRequired = "helicon.approval.required"
	AttrApprovalOutcome  = "helicon.approval.outcome"

	// Remote server attributes
	AttrServerID        = "helicon.remote.server_id"
	AttrServerTransport = "helicon.remote.transport"
	AttrServerState     = "helicon.remote.state"

	// Turn attributes
	AttrTurnIteration = "helicon.turn.iteration"
	AttrTurnPhase     = "helicon.turn.phase"
	AttrTurnGoal      = "helicon.turn.goal"
)

// SessionAttributes returns identity attributes for turn-level spans.
func SessionAttributes(tenantID, agentID, sessionID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if tenantID != "" {
		attrs = append(attrs, attribute.String(AttrTenantID, tenantID))
	}
	if agentID != "" {
		attrs = append(attrs, attribute.String(AttrAgentID, agentID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	return attrs
}

// ActionAttributes returns attributes for action execution spans.
func ActionAttributes(actionID, target, kind string, success bool, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrActionID, actionID),
		attribute.String(AttrActionTarget, target),
		attribute.Bool(AttrActionSuccess, success),
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(AttrActionKind, kind))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrActionDurationMs, durationMs))
	}
	return attrs
}

// RemoteAttributes returns attributes for remote server operations.
func RemoteAttributes(serverID, transport, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrServerID, serverID),
	}
	if transport != "" {
		attrs = append(attrs, attribute.String(AttrServerTransport, transport))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(AttrServerState, state))
	}
	return attrs
}

// TurnAttributes returns attributes for orchestration phase spans.
func TurnAttributes(phase string, iteration int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTurnPhase, phase),
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrTurnIteration, iteration))
	}
	return attrs
}
