package mcp

import (
	"context"
	"errors"
)

// ConnState is the tool-server connection lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// ErrNotConnected is returned by CallTool when the handshake has not run.
// Reconnection is the orchestrator's responsibility, not the client's; a
// call on a disconnected client fails fast instead of queuing.
var ErrNotConnected = errors.New("tool client not connected")

// CartResolver lazily fetches the active cart identifier for the current
// user. A resolver returning ("", nil) means no active cart exists, which
// is tolerated so a new cart can be created downstream.
type CartResolver func(ctx context.Context) (string, error)

// ToolResult is a normalized tool execution outcome. IsError marks a
// business-level failure reported by the tool server; transport failures
// surface as Go errors instead.
type ToolResult struct {
	Text    string
	IsError bool
}
