// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote manages connections to remote capability servers over
// MCP and exposes a uniform call interface to the action executor.
// Each server runs one of three transports: a local-process pipe
// (stdio), server-push HTTP (SSE), or bidirectional HTTP streaming.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/helicon-ai/helicon/pkg/errors"
	"github.com/helicon-ai/helicon/pkg/resilience"
	"github.com/helicon-ai/helicon/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultCallTimeout      = 10 * time.Second
	defaultConnectTimeout   = 10 * time.Second
	defaultFailureThreshold = 3
)

// TransportKind selects how a server connection is established.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamablehttp"
)

// ServerConfig declares one remote capability server.
type ServerConfig struct {
	ID        string
	Name      string
	Transport TransportKind

	// For stdio servers.
	Command string
	Args    []string
	Env     map[string]string

	// For HTTP transports.
	URL string

	// CallTimeout bounds a single tool call; zero uses the client default.
	CallTimeout time.Duration
}

// toolCaller is the slice of the mcp-go client the connection needs.
// Tests inject fakes through WithDialer.
type toolCaller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer establishes a transport-specific connection to a server.
type Dialer func(ctx context.Context, cfg ServerConfig) (toolCaller, error)

// conn tracks one server connection. All state mutations go through
// the connection's own mutex: single writer per connection.
type conn struct {
	mu                  sync.Mutex
	cfg                 ServerConfig
	state               session.ConnectionState
	client              toolCaller
	consecutiveFailures int
}

// Client manages named connections to remote capability servers.
type Client struct {
	mu    sync.RWMutex
	conns map[string]*conn

	retry            resilience.RetryConfig
	callTimeout      time.Duration
	connectTimeout   time.Duration
	failureThreshold int
	dial             Dialer
	log              *slog.Logger
}

// ClientOption customizes the remote client.
type ClientOption func(*Client)

// WithRetry sets the bounded retry policy applied to each call.
func WithRetry(rc resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = rc }
}

// WithCallTimeout sets the default per-call timeout.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithConnectTimeout sets the connection establishment timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithFailureThreshold sets how many consecutive call failures flip a
// connection into the error state.
func WithFailureThreshold(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithDialer replaces the transport dialer.
func WithDialer(dial Dialer) ClientOption {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// WithLogger sets the slog logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a remote capability client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		conns:            make(map[string]*conn),
		retry:            resilience.NoRetry(),
		callTimeout:      defaultCallTimeout,
		connectTimeout:   defaultConnectTimeout,
		failureThreshold: defaultFailureThreshold,
		dial:             dialMCP,
		log:              slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register declares a server. Registration does not connect.
func (c *Client) Register(cfg ServerConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("server id is required")
	}
	switch cfg.Transport {
	case TransportStdio:
		if cfg.Command == "" {
			return fmt.Errorf("server %q: stdio transport requires a command", cfg.ID)
		}
	case TransportSSE, TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("server %q: %s transport requires a url", cfg.ID, cfg.Transport)
		}
	default:
		return fmt.Errorf("server %q: unknown transport %q", cfg.ID, cfg.Transport)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.conns[cfg.ID]; exists {
		return fmt.Errorf("server %q already registered", cfg.ID)
	}
	c.conns[cfg.ID] = &conn{cfg: cfg, state: session.StateDisconnected}
	return nil
}

func (c *Client) get(id string) (*conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cn, ok := c.conns[id]
	return cn, ok
}

// Connect establishes the connection to a server. Idempotent when the
// server is already connected.
func (c *Client) Connect(ctx context.Context, id string) error {
	cn, ok := c.get(id)
	if !ok {
		return errors.New(errors.CodeNotConnected, "unknown server", nil).
			WithContext("server_id", id)
	}

	cn.mu.Lock()
	defer cn.mu.Unlock()

	if cn.state == session.StateConnected {
		return nil
	}
	cn.state = session.StateConnecting

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	client, err := c.dial(dialCtx, cn.cfg)
	if err != nil {
		cn.state = session.StateDisconnected
		c.log.Warn("remote.connect.error",
			slog.String("server_id", id),
			slog.String("transport", string(cn.cfg.Transport)),
			slog.String("error", err.Error()),
		)
		return errors.New(errors.CodeNotConnected, "connect failed", err).
			WithContext("server_id", id).
			WithRecoverable(true)
	}

	cn.client = client
	cn.state = session.StateConnected
	cn.consecutiveFailures = 0
	c.log.Info("remote.connect.ok",
		slog.String("server_id", id),
		slog.String("transport", string(cn.cfg.Transport)),
	)
	return nil
}

// ConnectAll connects every registered server, collecting errors.
func (c *Client) ConnectAll(ctx context.Context) error {
	c.mu.RLock()
	ids := make([]string, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := c.Connect(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Disconnect closes a server connection.
func (c *Client) Disconnect(id string) error {
	cn, ok := c.get(id)
	if !ok {
		return errors.New(errors.CodeNotConnected, "unknown server", nil).
			WithContext("server_id", id)
	}
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.client != nil {
		_ = cn.client.Close()
		cn.client = nil
	}
	cn.state = session.StateDisconnected
	cn.consecutiveFailures = 0
	return nil
}

// Close disconnects every server.
func (c *Client) Close() error {
	c.mu.RLock()
	ids := make([]string, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := c.Disconnect(id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Status returns the connection state of a server.
func (c *Client) Status(id string) (session.ConnectionState, bool) {
	cn, ok := c.get(id)
	if !ok {
		return "", false
	}
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.state, true
}

// ListTools lists the tools of a connected server.
func (c *Client) ListTools(ctx context.Context, id string) ([]mcp.Tool, error) {
	cn, client, err := c.connected(id)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(cn))
	defer cancel()

	resp, err := client.ListTools(callCtx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, c.recordFailure(cn, id, err)
	}
	c.recordSuccess(cn)
	return resp.Tools, nil
}

// CallTool executes a tool on a connected server with an independent
// per-call timeout and the injected retry policy. A timed-out call
// leaves the connection state untouched unless the consecutive-failure
// threshold is crossed.
func (c *Client) CallTool(ctx context.Context, id, name string, args map[string]any) (any, error) {
	cn, client, err := c.connected(id)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	callErr := c.retry.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(cn))
		defer cancel()
		res, err := client.CallTool(callCtx, req)
		if err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return errors.New(errors.CodeTimeout, "tool call timed out", err).
					WithContext("server_id", id).
					WithContext("tool", name).
					WithRecoverable(true)
			}
			return errors.New(errors.CodeBackendFailure, "tool call failed", err).
				WithContext("server_id", id).
				WithContext("tool", name).
				WithRecoverable(true)
		}
		result = res
		return nil
	})
	if callErr != nil {
		return nil, c.recordFailure(cn, id, callErr)
	}

	out, err := toolResultToOutput(result)
	if err != nil {
		// The server answered; a tool-level error is not a transport
		// failure and does not count against the connection.
		c.recordSuccess(cn)
		return nil, errors.New(errors.CodeBackendFailure, "tool returned error", err).
			WithContext("server_id", id).
			WithContext("tool", name)
	}
	c.recordSuccess(cn)
	return out, nil
}

// Descriptors lists each registered server with its current state and,
// for connected servers, the tools it exposes.
func (c *Client) Descriptors(ctx context.Context) []session.ServerDescriptor {
	c.mu.RLock()
	conns := make([]*conn, 0, len(c.conns))
	for _, cn := range c.conns {
		conns = append(conns, cn)
	}
	c.mu.RUnlock()

	out := make([]session.ServerDescriptor, 0, len(conns))
	for _, cn := range conns {
		cn.mu.Lock()
		desc := session.ServerDescriptor{
			ID:    cn.cfg.ID,
			Name:  cn.cfg.Name,
			State: cn.state,
		}
		cn.mu.Unlock()

		if desc.State == session.StateConnected {
			tools, err := c.ListTools(ctx, desc.ID)
			if err != nil {
				c.log.Warn("remote.list_tools.error",
					slog.String("server_id", desc.ID),
					slog.String("error", err.Error()),
				)
			}
			for _, tool := range tools {
				desc.Tools = append(desc.Tools, session.RemoteToolDescriptor{
					Name:        tool.Name,
					Description: tool.Description,
					InputSchema: schemaToMap(tool),
				})
			}
			// Listing may have tripped the failure threshold.
			cn.mu.Lock()
			desc.State = cn.state
			cn.mu.Unlock()
		}
		out = append(out, desc)
	}
	return out
}

func (c *Client) connected(id string) (*conn, toolCaller, error) {
	cn, ok := c.get(id)
	if !ok {
		return nil, nil, errors.New(errors.CodeNotConnected, "unknown server", nil).
			WithContext("server_id", id)
	}
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.state != session.StateConnected || cn.client == nil {
		return nil, nil, errors.New(errors.CodeNotConnected, "server not connected", nil).
			WithContext("server_id", id).
			WithContext("state", string(cn.state))
	}
	return cn, cn.client, nil
}

func (c *Client) timeoutFor(cn *conn) time.Duration {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.cfg.CallTimeout > 0 {
		return cn.cfg.CallTimeout
	}
	return c.callTimeout
}

func (c *Client) recordSuccess(cn *conn) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.consecutiveFailures = 0
}

// recordFailure bumps the consecutive-failure counter and flips the
// connection into the error state once the threshold is crossed. A
// slow call is not necessarily a dead connection, so states below the
// threshold are left untouched.
func (c *Client) recordFailure(cn *conn, id string, err error) error {
	cn.mu.Lock()
	cn.consecutiveFailures++
	crossed := cn.consecutiveFailures >= c.failureThreshold
	if crossed && cn.state == session.StateConnected {
		cn.state = session.StateError
	}
	failures := cn.consecutiveFailures
	cn.mu.Unlock()

	if crossed {
		c.log.Error("remote.connection.error_state",
			slog.String("server_id", id),
			slog.Int("consecutive_failures", failures),
		)
	}
	return err
}
