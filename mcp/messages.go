package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

const (
	// Lifecycle
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"
	// LegacyInitializedNotificationMethod is the bare notification name some
	// older clients send instead of InitializedNotificationMethod.
	LegacyInitializedNotificationMethod Method = "initialized"
	ShutdownMethod                      Method = "shutdown"

	// Tools
	ToolsListMethod Method = "tools/list"
	ToolsCallMethod Method = "tools/call"

	// Utilities
	PingMethod Method = "ping"
)

// IsInitializedNotification reports whether m names one of the fire-and-forget
// initialized notifications.
func IsInitializedNotification(m Method) bool {
	switch m {
	case InitializedNotificationMethod, LegacyInitializedNotificationMethod:
		return true
	default:
		return false
	}
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns the server's capabilities and identity.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
}

// EmptyResult is the result of ping and shutdown.
type EmptyResult struct{}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolRequestReceived is the server-received representation for a tool call.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolRequestSent is the client-sent version of a tool call.
type CallToolRequestSent struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the result of tools/call. Exactly one field is set:
// Message when the tool ran, Error when it is unknown or failed. A failure is
// still delivered inside a successful JSON-RPC envelope.
type CallToolResult struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
