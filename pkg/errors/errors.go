// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Helicon.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Helicon errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidAction indicates the action target could not be resolved
	// against the capability graph.
	CodeInvalidAction ErrorCode = "INVALID_ACTION"

	// CodeApprovalDenied indicates a high-risk action was denied approval.
	CodeApprovalDenied ErrorCode = "APPROVAL_DENIED"

	// CodeBackendFailure indicates a skill, tool, or remote call failed.
	CodeBackendFailure ErrorCode = "BACKEND_FAILURE"

	// CodeNotConnected indicates a remote capability server is not connected.
	CodeNotConnected ErrorCode = "NOT_CONNECTED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeConfigError indicates a required backend or setting is missing.
	CodeConfigError ErrorCode = "CONFIG_ERROR"

	// CodeAuditError indicates an audit storage write or query failed.
	CodeAuditError ErrorCode = "AUDIT_ERROR"

	// CodeContextLost indicates the context was canceled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"
)

// HeliconError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type HeliconError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *HeliconError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *HeliconError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *HeliconError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new HeliconError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *HeliconError {
	return &HeliconError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *HeliconError) WithContext(key string, value interface{}) *HeliconError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *HeliconError) WithRecoverable(recoverable bool) *HeliconError {
	e.Recoverable = recoverable
	return e
}

// AsHeliconError attempts to convert an error to a HeliconError.
// Returns the error as HeliconError if it is one, or wraps it otherwise.
func AsHeliconError(err error) *HeliconError {
	if err == nil {
		return nil
	}
	if he, ok := err.(*HeliconError); ok {
		return he
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if he, ok := err.(*HeliconError); ok {
		return he.Code
	}
	return CodeInternal
}
