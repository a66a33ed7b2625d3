package tools

import (
	"context"
	"fmt"
	"time"
)

// Clock returns the current time in RFC 3339 format.
func Clock() Tool {
	return Func{
		ToolName:        "clock",
		ToolDescription: "Returns the current UTC time.",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Fn: func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	}
}

// Echo returns its "text" argument unchanged. Useful for wiring checks.
func Echo() Tool {
	return Func{
		ToolName:        "echo",
		ToolDescription: "Echoes the given text back.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			text, ok := args["text"].(string)
			if !ok {
				return nil, fmt.Errorf("echo: missing required field %q", "text")
			}
			return text, nil
		},
	}
}
