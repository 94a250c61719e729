package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/config"
	"storechat/model"
)

const protocolVersion = "2025-06-18"

// rpcClient is the slice of the MCP client surface the tool client uses.
// *client.Client satisfies it; tests substitute a fake.
type rpcClient interface {
	Initialize(ctx context.Context, request mcptypes.InitializeRequest) (*mcptypes.InitializeResult, error)
	ListTools(ctx context.Context, request mcptypes.ListToolsRequest) (*mcptypes.ListToolsResult, error)
	CallTool(ctx context.Context, request mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
	Close() error
}

// Client wraps a single external tool-server connection reached over the
// streamable HTTP transport (JSON-RPC over POST; session continuity via the
// server-issued session header, termination via HTTP DELETE on Close).
type Client struct {
	mu           sync.Mutex
	connectMu    sync.Mutex // serializes Connect; one dial at a time
	cfg          config.ToolServerConfig
	state        ConnState
	rpc          rpcClient
	cartResolver CartResolver

	// dial is swappable in tests
	dial func(ctx context.Context, cfg config.ToolServerConfig) (rpcClient, error)
}

// NewClient creates a tool client for the configured server. cartResolver
// may be nil when no commerce session is wired in.
func NewClient(cfg config.ToolServerConfig, cartResolver CartResolver) *Client {
	return &Client{
		cfg:          cfg,
		state:        StateDisconnected,
		cartResolver: cartResolver,
		dial:         dialStreamableHTTP,
	}
}

func dialStreamableHTTP(ctx context.Context, cfg config.ToolServerConfig) (rpcClient, error) {
	headers := make(map[string]string)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.AuthToken != "" {
		headers["Authorization"] = "Bearer " + cfg.AuthToken
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.ServerURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	return mcpClient, nil
}

// Connect runs the handshake and tool discovery. A handshake failure leaves
// the state at error and is returned; a discovery failure also leaves the
// state at error but is swallowed, and the server simply reports zero tools
// until the next reconnect. Concurrent callers share one connection attempt;
// a reconnect closes the stale transport before dialing again.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	stale := c.rpc
	c.rpc = nil
	c.state = StateConnecting
	c.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	rpc, err := c.dial(ctx, c.cfg)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("failed to connect to tool server %s: %w", c.cfg.ServerURL, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "storechat",
				Version: "1.0.0",
			},
		},
	}

	if _, err := rpc.Initialize(ctx, initReq); err != nil {
		rpc.Close()
		c.setState(StateError)
		return fmt.Errorf("failed to initialize tool server session: %w", err)
	}

	// A stateless server issues no session token; tolerated, but worth a
	// trace since session continuity is lost.
	if s, ok := rpc.(interface{ GetSessionId() string }); ok && s.GetSessionId() == "" {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Server at %s returned no session id (stateless)", c.cfg.ServerURL)
		}
	}

	c.mu.Lock()
	c.rpc = rpc
	c.mu.Unlock()

	if _, err := rpc.ListTools(ctx, mcptypes.ListToolsRequest{}); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Tool discovery failed for %s: %v", c.cfg.ServerURL, err)
		}
		c.setState(StateError)
		return nil
	}

	c.setState(StateConnected)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connected to tool server %s", c.cfg.ServerURL)
	}
	return nil
}

// ListTools returns the server's current tool definitions, queried fresh so
// callers never see stale discovery state across reconnects. Any failure is
// reported as zero available tools.
func (c *Client) ListTools(ctx context.Context) []mcptypes.Tool {
	c.mu.Lock()
	rpc := c.rpc
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || rpc == nil {
		return nil
	}

	result, err := rpc.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] ListTools failed: %v", err)
		}
		c.setState(StateError)
		return nil
	}
	return result.Tools
}

// CallTool executes one tool call with enriched arguments and normalizes
// the result. Business failures come back as ToolResult.IsError; the error
// return is reserved for transport-level failure.
func (c *Client) CallTool(ctx context.Context, call model.ToolCall) (*ToolResult, error) {
	c.mu.Lock()
	rpc := c.rpc
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || rpc == nil {
		return nil, ErrNotConnected
	}

	args := decodeArguments(call.Arguments)
	args = c.enrichArguments(ctx, call.Name, args)

	result, err := rpc.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      call.Name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s failed: %w", call.Name, err)
	}

	formatted := FormatResult(result)
	return &formatted, nil
}

// Disconnect terminates the server session (HTTP DELETE carrying the
// session header, issued by the transport on close). Cleanup failure is
// non-fatal.
func (c *Client) Disconnect() {
	c.mu.Lock()
	rpc := c.rpc
	c.rpc = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if rpc != nil {
		if err := rpc.Close(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Error closing tool server session: %v", err)
		}
	}
}

// State returns the connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the handshake and discovery completed.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// decodeArguments parses the JSON-encoded argument string from a tool call.
// Malformed input degrades to an empty argument map rather than failing the
// call outright.
func decodeArguments(raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
