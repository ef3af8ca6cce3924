// Package wstransport serves the MCP method surface over websockets. Each
// accepted connection is one client; every text (or binary) message is one
// JSON-RPC frame.
//
// Characteristics
//
//	Connection model : 1 websocket <-> 1 client, any number concurrently
//	Auth             : none
//	Sessions         : none; each connection is independent
//	Transport        : one JSON document per websocket message
//
// Example:
//
//	srv := mcpservice.NewServer(mcpservice.WithLogger(log))
//	h := wstransport.New(srv, wstransport.WithLogger(log))
//	if err := wstransport.ListenAndServe(ctx, "localhost:9090", h, log); err != nil {
//	    log.Error("server failed", slog.String("err", err.Error()))
//	}
package wstransport
