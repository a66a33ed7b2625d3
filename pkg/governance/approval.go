// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance provides the approval model for high-risk actions.
// The executor consults an ApprovalHook before dispatching any action
// whose name appears in the runtime policy's high-risk list.
package governance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Request describes the action awaiting approval.
type Request struct {
	ActionName string
	Params     map[string]any
	// Metadata carries resolved execution metadata as flat strings
	// (capability kind, source, server identity) for display.
	Metadata map[string]string
}

// DecisionStatus captures the approval outcome.
type DecisionStatus string

const (
	DecisionStatusAllow DecisionStatus = "allow"
	DecisionStatusDeny  DecisionStatus = "deny"
)

// Decision captures the outcome of an approval request.
type Decision struct {
	Allowed bool
	Reason  string
	Status  DecisionStatus
}

// IsAllowed returns true when the decision permits the action.
func (d Decision) IsAllowed() bool {
	if d.Status == "" {
		return d.Allowed
	}
	return d.Status == DecisionStatusAllow
}

// ApprovalHook can request a human decision for an action. A hook that
// errors or overruns the executor's deadline is treated as a denial.
type ApprovalHook interface {
	Request(ctx context.Context, req Request) Decision
}

// Allow returns an allowing decision with the given reason.
func Allow(reason string) Decision {
	return Decision{Allowed: true, Status: DecisionStatusAllow, Reason: reason}
}

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Status: DecisionStatusDeny, Reason: reason}
}

// StaticApprovalHook returns a fixed decision for every request.
type StaticApprovalHook struct {
	Decision Decision
}

// Request returns the configured decision.
func (h StaticApprovalHook) Request(_ context.Context, _ Request) Decision {
	return normalizeDecision(h.Decision, "approval decision not set")
}

// FuncApprovalHook adapts a predicate into an ApprovalHook. This is the
// shape the surrounding application usually injects.
type FuncApprovalHook func(ctx context.Context, req Request) (bool, error)

// Request invokes the predicate; an error counts as a denial.
func (h FuncApprovalHook) Request(ctx context.Context, req Request) Decision {
	ok, err := h(ctx, req)
	if err != nil {
		return Deny(fmt.Sprintf("approval hook error: %v", err))
	}
	if !ok {
		return Deny("denied by approval hook")
	}
	return Allow("approved by hook")
}

// ConsoleApprovalHook prompts for approval on stdin/stdout.
type ConsoleApprovalHook struct {
	in              *bufio.Reader
	out             io.Writer
	prompt          string
	timeout         time.Duration
	defaultDecision Decision
}

// ConsoleApprovalOption configures the console approval hook.
type ConsoleApprovalOption func(*ConsoleApprovalHook)

// NewConsoleApprovalHook creates a console-based approval hook.
func NewConsoleApprovalHook(opts ...ConsoleApprovalOption) *ConsoleApprovalHook {
	h := &ConsoleApprovalHook{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		prompt: "Approve? [y/N]: ",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithApprovalInput sets the input reader for the console hook.
func WithApprovalInput(r io.Reader) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if r != nil {
			h.in = bufio.NewReader(r)
		}
	}
}

// WithApprovalOutput sets the output writer for the console hook.
func WithApprovalOutput(w io.Writer) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if w != nil {
			h.out = w
		}
	}
}

// WithApprovalTimeout sets a timeout for waiting on user input.
func WithApprovalTimeout(timeout time.Duration) ConsoleApprovalOption {
	return func(h *ConsoleApprovalHook) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// Request prompts for approval and returns the operator decision.
func (h *ConsoleApprovalHook) Request(ctx context.Context, req Request) Decision {
	if h == nil || h.in == nil {
		return normalizeDecision(h.defaultDecision, "approval input not available")
	}

	_, _ = fmt.Fprintf(h.out, "\nApproval required for action %q\n", req.ActionName)
	if kind := req.Metadata["capability_kind"]; kind != "" {
		_, _ = fmt.Fprintf(h.out, "Kind: %s\n", kind)
	}
	if server := req.Metadata["server_name"]; server != "" {
		_, _ = fmt.Fprintf(h.out, "Server: %s\n", server)
	}
	_, _ = fmt.Fprint(h.out, h.prompt)

	responseCh := make(chan string, 1)
	go func() {
		line, _ := h.in.ReadString('\n')
		responseCh <- line
	}()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return Deny("approval timed out")
	case line := <-responseCh:
		answer := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(answer, "y") {
			return Allow("approved by operator")
		}
		return Deny("rejected by operator")
	}
}

func normalizeDecision(decision Decision, fallbackReason string) Decision {
	if decision.Status == "" && decision.Reason == "" && !decision.Allowed {
		return Deny(fallbackReason)
	}
	if decision.Status == "" {
		if decision.Allowed {
			decision.Status = DecisionStatusAllow
		} else {
			decision.Status = DecisionStatusDeny
		}
	}
	return decision
}
