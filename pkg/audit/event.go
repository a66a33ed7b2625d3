// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the append-only event stream recording every
// lifecycle transition of an action, with batched time-bounded flushing
// to a pluggable storage backend.
package audit

import (
	"time"

	"github.com/helicon-ai/helicon/pkg/capability"
	"github.com/helicon-ai/helicon/pkg/session"
)

// EventType identifies one lifecycle transition of an action.
type EventType string

const (
	EventActionStarted     EventType = "action.started"
	EventActionCompleted   EventType = "action.completed"
	EventActionFailed      EventType = "action.failed"
	EventActionRejected    EventType = "action.rejected"
	EventApprovalRequested EventType = "approval.requested"
	EventApprovalGranted   EventType = "approval.granted"
	EventApprovalDenied    EventType = "approval.denied"
)

// Severity classifies an event for filtering and alerting.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one immutable audit record. Never mutated after creation.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id,omitempty"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`

	ActionID   string         `json:"action_id"`
	ActionName string         `json:"action_name"`
	Params     map[string]any `json:"params,omitempty"`

	Metadata *capability.ExecutionMetadata `json:"metadata,omitempty"`

	Success    bool     `json:"success"`
	DurationMs float64  `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	Severity   Severity `json:"severity"`
}

// NewEvent builds an event with a UTC timestamp and a severity derived
// from the event type.
func NewEvent(eventType EventType, id session.Identity, actionID, actionName string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  id.TenantID,
		UserID:    id.UserID,
		AgentID:   id.AgentID,
		SessionID: id.SessionID,
		ActionID:  actionID,
		ActionName: actionName,
		Severity:  defaultSeverity(eventType),
	}
}

func defaultSeverity(eventType EventType) Severity {
	switch eventType {
	case EventActionFailed:
		return SeverityError
	case EventActionRejected, EventApprovalDenied:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Filter limits audit queries. Zero values match everything.
type Filter struct {
	TenantID  string
	SessionID string
	AgentID   string
	ActionID  string
	Type      EventType
	Success   *bool
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(ev Event) bool {
	if f.TenantID != "" && ev.TenantID != f.TenantID {
		return false
	}
	if f.SessionID != "" && ev.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	if f.ActionID != "" && ev.ActionID != f.ActionID {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Success != nil && ev.Success != *f.Success {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) {
		return false
	}
	return true
}
