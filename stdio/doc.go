// Package stdio serves the MCP method surface over stdin/stdout. It is
// intended for running the server as a subprocess of an MCP client, local
// development, and environments where piping JSON is simpler than opening a
// websocket.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the OS user is recorded for logging only
//	Transport        : newline-delimited JSON-RPC, one message per line
//
// Options allow supplying alternate io.Reader / io.Writer or a custom logger.
//
// Example:
//
//	srv := mcpservice.NewServer()
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
//
// Serve returns when the reader reaches EOF, the context is canceled, or the
// client sends shutdown.
package stdio
