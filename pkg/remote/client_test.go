package remote

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/helicon-ai/helicon/pkg/errors"
	"github.com/helicon-ai/helicon/pkg/resilience"
	"github.com/helicon-ai/helicon/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	mu     sync.Mutex
	tools  []mcp.Tool
	callFn func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	calls  int
	closed bool
}

func (f *fakeCaller) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeCaller) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.callFn(ctx, req)
}

func (f *fakeCaller) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func newTestClient(fake *fakeCaller, opts ...ClientOption) *Client {
	opts = append(opts, WithDialer(func(ctx context.Context, cfg ServerConfig) (toolCaller, error) {
		return fake, nil
	}))
	c := NewClient(opts...)
	if err := c.Register(ServerConfig{ID: "fs", Name: "Filesystem", Transport: TransportStdio, Command: "fs-server"}); err != nil {
		panic(err)
	}
	return c
}

func TestRegisterValidation(t *testing.T) {
	c := NewClient()
	cases := []ServerConfig{
		{Name: "no-id", Transport: TransportStdio, Command: "x"},
		{ID: "s1", Transport: TransportStdio},
		{ID: "s2", Transport: TransportSSE},
		{ID: "s3", Transport: TransportKind("carrier-pigeon"), URL: "http://x"},
	}
	for _, cfg := range cases {
		if err := c.Register(cfg); err == nil {
			t.Fatalf("expected registration error for %+v", cfg)
		}
	}

	if err := c.Register(ServerConfig{ID: "ok", Transport: TransportSSE, URL: "http://localhost:9000"}); err != nil {
		t.Fatalf("valid registration failed: %v", err)
	}
	if err := c.Register(ServerConfig{ID: "ok", Transport: TransportSSE, URL: "http://localhost:9000"}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
}

func TestConnectIdempotent(t *testing.T) {
	dials := 0
	c := NewClient(WithDialer(func(ctx context.Context, cfg ServerConfig) (toolCaller, error) {
		dials++
		return &fakeCaller{}, nil
	}))
	if err := c.Register(ServerConfig{ID: "fs", Transport: TransportStdio, Command: "fs-server"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if state, _ := c.Status("fs"); state != session.StateDisconnected {
		t.Fatalf("expected disconnected before connect, got %s", state)
	}
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if dials != 1 {
		t.Fatalf("connect must be idempotent, dialed %d times", dials)
	}
	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("expected connected, got %s", state)
	}
}

func TestConnectFailureReturnsToDisconnected(t *testing.T) {
	c := NewClient(WithDialer(func(ctx context.Context, cfg ServerConfig) (toolCaller, error) {
		return nil, stderrors.New("spawn failed")
	}))
	if err := c.Register(ServerConfig{ID: "fs", Transport: TransportStdio, Command: "fs-server"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := c.Connect(context.Background(), "fs")
	if errors.CodeOf(err) != errors.CodeNotConnected {
		t.Fatalf("expected CodeNotConnected, got %v", err)
	}
	if state, _ := c.Status("fs"); state != session.StateDisconnected {
		t.Fatalf("failed connect must land in disconnected, got %s", state)
	}
}

func TestCallToolRequiresConnection(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult("ok"), nil
	}}
	c := newTestClient(fake)

	_, err := c.CallTool(context.Background(), "fs", "read_file", nil)
	if errors.CodeOf(err) != errors.CodeNotConnected {
		t.Fatalf("expected CodeNotConnected before connect, got %v", err)
	}

	_, err = c.CallTool(context.Background(), "ghost", "read_file", nil)
	if errors.CodeOf(err) != errors.CodeNotConnected {
		t.Fatalf("expected CodeNotConnected for unknown server, got %v", err)
	}
}

func TestCallToolSuccess(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if req.Params.Name != "read_file" {
			t.Fatalf("unexpected tool name %q", req.Params.Name)
		}
		return textResult("file contents"), nil
	}}
	c := newTestClient(fake)
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	out, err := c.CallTool(context.Background(), "fs", "read_file", map[string]any{"path": "/tmp/x"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "file contents" {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestCallToolStructuredContent(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{StructuredContent: map[string]any{"count": 3}}, nil
	}}
	c := newTestClient(fake)
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	out, err := c.CallTool(context.Background(), "fs", "count", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["count"] != 3 {
		t.Fatalf("unexpected structured output %v", out)
	}
}

func TestToolLevelErrorDoesNotCountAgainstConnection(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "no such file"}},
		}, nil
	}}
	c := newTestClient(fake, WithFailureThreshold(1))
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := c.CallTool(context.Background(), "fs", "read_file", nil)
		if errors.CodeOf(err) != errors.CodeBackendFailure {
			t.Fatalf("expected CodeBackendFailure, got %v", err)
		}
	}
	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("tool-level error must not flip state, got %s", state)
	}
}

func TestConsecutiveFailuresFlipToErrorState(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, stderrors.New("broken pipe")
	}}
	c := newTestClient(fake, WithFailureThreshold(2))
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := c.CallTool(context.Background(), "fs", "read_file", nil); err == nil {
		t.Fatalf("expected failure")
	}
	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("below threshold the state must not change, got %s", state)
	}

	if _, err := c.CallTool(context.Background(), "fs", "read_file", nil); err == nil {
		t.Fatalf("expected failure")
	}
	if state, _ := c.Status("fs"); state != session.StateError {
		t.Fatalf("threshold crossed, expected error state, got %s", state)
	}

	_, err := c.CallTool(context.Background(), "fs", "read_file", nil)
	if errors.CodeOf(err) != errors.CodeNotConnected {
		t.Fatalf("error state must reject calls, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	var fail bool
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if fail {
			return nil, stderrors.New("broken pipe")
		}
		return textResult("ok"), nil
	}}
	c := newTestClient(fake, WithFailureThreshold(2))
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	fail = true
	_, _ = c.CallTool(context.Background(), "fs", "t", nil)
	fail = false
	if _, err := c.CallTool(context.Background(), "fs", "t", nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	fail = true
	_, _ = c.CallTool(context.Background(), "fs", "t", nil)

	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("success must reset the failure count, got %s", state)
	}
}

func TestCallToolTimeout(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newTestClient(fake, WithCallTimeout(20*time.Millisecond))
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, err := c.CallTool(context.Background(), "fs", "slow", nil)
	if errors.CodeOf(err) != errors.CodeTimeout {
		t.Fatalf("expected CodeTimeout, got %v", err)
	}
	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("single timeout must not flip state, got %s", state)
	}
}

func TestCallToolRetries(t *testing.T) {
	attempts := 0
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		attempts++
		if attempts == 1 {
			return nil, stderrors.New("transient")
		}
		return textResult("ok"), nil
	}}
	rc := resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
	c := newTestClient(fake, WithRetry(rc))
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	out, err := c.CallTool(context.Background(), "fs", "read_file", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "ok" || attempts != 2 {
		t.Fatalf("expected retry success on attempt 2, got out=%v attempts=%d", out, attempts)
	}
	if state, _ := c.Status("fs"); state != session.StateConnected {
		t.Fatalf("recovered call must leave connection healthy, got %s", state)
	}
}

func TestDisconnectClosesClient(t *testing.T) {
	fake := &fakeCaller{callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult("ok"), nil
	}}
	c := newTestClient(fake)
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Disconnect("fs"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !fake.closed {
		t.Fatalf("disconnect must close the transport")
	}
	if state, _ := c.Status("fs"); state != session.StateDisconnected {
		t.Fatalf("expected disconnected, got %s", state)
	}
}

func TestDescriptors(t *testing.T) {
	fake := &fakeCaller{
		tools: []mcp.Tool{
			{Name: "read_file", Description: "Read a file"},
			{Name: "write_file", Description: "Write a file"},
		},
		callFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("ok"), nil
		},
	}
	c := newTestClient(fake)
	if err := c.Register(ServerConfig{ID: "down", Name: "Down", Transport: TransportSSE, URL: "http://localhost:1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Connect(context.Background(), "fs"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	descs := c.Descriptors(context.Background())
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	byID := map[string]session.ServerDescriptor{}
	for _, d := range descs {
		byID[d.ID] = d
	}
	fs := byID["fs"]
	if fs.State != session.StateConnected || len(fs.Tools) != 2 {
		t.Fatalf("connected server descriptor wrong: %+v", fs)
	}
	down := byID["down"]
	if down.State != session.StateDisconnected || len(down.Tools) != 0 {
		t.Fatalf("disconnected server must carry no tools: %+v", down)
	}
}
