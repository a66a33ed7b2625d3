// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package capability

// ExecutionMetadata describes the resolved capability behind an action
// result. The executor creates it at dispatch time; it is read-only
// afterwards and travels with the audit trail.
type ExecutionMetadata struct {
	Kind    Kind   `json:"kind"`
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`

	// Set only for remote capabilities.
	ServerID   string `json:"server_id,omitempty"`
	ServerName string `json:"server_name,omitempty"`

	ApprovalRequired bool `json:"approval_required"`
	HighRisk         bool `json:"high_risk"`
}

// MetadataFor derives execution metadata from a resolved capability.
func MetadataFor(c Capability, highRisk, approvalRequired bool) ExecutionMetadata {
	return ExecutionMetadata{
		Kind:             c.Kind,
		Source:           c.Source,
		Version:          c.Version,
		ServerID:         c.ServerID,
		ServerName:       c.ServerName,
		ApprovalRequired: approvalRequired,
		HighRisk:         highRisk,
	}
}

// Strings returns the metadata as a flat string map for display in
// approval prompts and structured logs.
func (m ExecutionMetadata) Strings() map[string]string {
	out := map[string]string{
		"capability_kind": string(m.Kind),
		"source":          m.Source,
	}
	if m.Version != "" {
		out["version"] = m.Version
	}
	if m.ServerID != "" {
		out["server_id"] = m.ServerID
		out["server_name"] = m.ServerName
	}
	return out
}
