// Package mcpservice implements the MCP method surface of the hello-mcp
// server independently of any transport.
//
// A Server owns an explicit method table:
//
//	initialize  -> protocol version, tools capability, server identity
//	shutdown    -> {} and the connection is closed after the reply
//	ping        -> {}
//	tools/list  -> the registered tools
//	tools/call  -> {"message": ...} or {"error": ...}
//
// Any other method is answered with JSON-RPC error -32601. Requests without
// an id naming notifications/initialized (or the legacy "initialized") get
// no reply, and frames that do not parse are dropped.
//
// Transports adapt their connection to Conn and call ServeConn once per
// connection:
//
//	srv := mcpservice.NewServer(mcpservice.WithLogger(log))
//	err := srv.ServeConn(ctx, conn)
//
// Tools
//
// The default tool set holds the single hello_world tool. WithTools swaps in
// a ToolsContainer; NewTool derives an input schema from a typed argument
// struct. An unknown tool name is not a protocol error: the reply is a
// successful response whose result carries {"error": "unknown tool"}.
package mcpservice
