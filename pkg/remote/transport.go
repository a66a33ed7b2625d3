// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// dialMCP establishes an initialized mcp-go client for the configured
// transport. All three transports share the start-then-initialize
// handshake.
func dialMCP(ctx context.Context, cfg ServerConfig) (toolCaller, error) {
	var (
		mcpClient *client.Client
		err       error
	)
	switch cfg.Transport {
	case TransportStdio:
		mcpClient, err = client.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	case TransportSSE:
		mcpClient, err = client.NewSSEMCPClient(cfg.URL)
	case TransportStreamableHTTP:
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	if err := mcpClient.Start(ctx); err != nil {
		_ = mcpClient.Close()
		return nil, err
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "helicon-client",
		Version: "0.1.0",
	}
	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		_ = mcpClient.Close()
		return nil, err
	}
	return mcpClient, nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// toolResultToOutput unwraps an MCP call result into a plain value.
// Structured content wins over text; a tool-level error becomes a Go
// error carrying the server's message.
func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("%s", extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}
	return result, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaToMap flattens an MCP tool's input schema into a generic map
// for the capability graph. RawInputSchema wins when present.
func schemaToMap(tool mcp.Tool) map[string]any {
	var raw []byte
	if tool.RawInputSchema != nil {
		raw = tool.RawInputSchema
	} else {
		encoded, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
