// Package mcp contains the protocol data types and constants spoken by the
// hello-mcp server. It mirrors the wire representation of the slice of the
// Model Context Protocol the server implements while keeping the surface
// Go-friendly (exported structs with json tags, string constants for method
// names).
//
// The package is free of transport logic: the websocket and stdio transports
// import these types but implement their own framing, and the mcpservice
// dispatcher constructs results from them before handing them to the
// JSON-RPC layer for serialization.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Both notifications/initialized and
// the legacy bare "initialized" name are listed; IsInitializedNotification
// recognizes either.
//
// # Compatibility
//
// ProtocolVersion is returned verbatim from initialize regardless of the
// version requested by the client. No negotiation takes place.
package mcp
