package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ggoodman/hello-mcp/internal/jsonrpc"
	"github.com/ggoodman/hello-mcp/internal/logctx"
	"github.com/ggoodman/hello-mcp/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// MethodFunc answers one request. A returned *jsonrpc.Error is sent to the
// peer as-is; any other error becomes an internal error response.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

type methodHandler struct {
	call MethodFunc
	// closeAfter ends the connection once the response has been written.
	closeAfter bool
}

// Server maps inbound JSON-RPC methods to their handlers. It holds no
// per-connection state and is safe for concurrent use by any number of
// connections.
type Server struct {
	log     *slog.Logger
	tracer  trace.Tracer
	tools   *ToolsContainer
	methods map[mcp.Method]methodHandler
}

// NewServer builds a Server with the built-in method table and the
// hello_world tool unless WithTools supplies another set.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		log:    slog.New(slog.DiscardHandler),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tools == nil {
		s.tools = NewToolsContainer(HelloWorldTool())
	}

	s.methods = map[mcp.Method]methodHandler{
		mcp.InitializeMethod: {call: s.initialize},
		mcp.ShutdownMethod:   {call: emptyResult, closeAfter: true},
		mcp.PingMethod:       {call: emptyResult},
		mcp.ToolsListMethod:  {call: s.listTools},
		mcp.ToolsCallMethod:  {call: s.callTool},
	}
	return s
}

// WithLogger sets the logger used for dispatch diagnostics. Records are
// emitted with the request context, so a logctx.Handler picks up connection
// and rpc attributes.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer sets the tracer used to record one span per dispatched request.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTools replaces the advertised tool set.
func WithTools(tools *ToolsContainer) ServerOption {
	return func(s *Server) {
		if tools != nil {
			s.tools = tools
		}
	}
}

// Handle dispatches a single inbound frame. It returns the encoded response,
// or nil when the frame warrants none (unparseable frames and initialized
// notifications), and reports whether the connection must be closed once the
// response has been written.
func (s *Server) Handle(ctx context.Context, frame []byte) (resp []byte, closeAfter bool) {
	req, err := jsonrpc.ParseRequest(frame)
	if err != nil {
		s.log.DebugContext(ctx, "dropping unparseable frame", slog.String("err", err.Error()))
		return nil, false
	}

	msgType := "request"
	if req.IsNotification() {
		msgType = "notification"
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: msgType})
	s.log.DebugContext(ctx, "received", slog.String("frame", string(frame)))

	method := mcp.Method(req.Method)
	if req.IsNotification() && mcp.IsInitializedNotification(method) {
		s.log.DebugContext(ctx, "ignoring notification")
		return nil, false
	}

	ctx, span := s.tracer.Start(ctx, req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", req.Method),
			attribute.String("rpc.jsonrpc.request_id", req.ID.String()),
		),
	)
	defer span.End()

	res, closeAfter := s.dispatch(ctx, req)
	if res.Error != nil {
		span.SetStatus(codes.Error, res.Error.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", int(res.Error.Code)))
	}

	b, err := json.Marshal(res)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode response", slog.String("err", err.Error()))
		b, _ = json.Marshal(jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal error", nil))
	}
	s.log.DebugContext(ctx, "sending response", slog.String("frame", string(b)), slog.Bool("close_after", closeAfter))
	return b, closeAfter
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, bool) {
	h, ok := s.methods[mcp.Method(req.Method)]
	if !ok {
		e := jsonrpc.ErrMethodNotFound()
		return jsonrpc.NewErrorResponse(req.ID, e.Code, e.Message, nil), false
	}

	result, err := h.call(ctx, req.Params)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data), h.closeAfter
		}
		s.log.ErrorContext(ctx, "method handler failed", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal error", nil), h.closeAfter
	}

	res, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to encode result", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "Internal error", nil), h.closeAfter
	}
	return res, h.closeAfter
}

// initialize ignores the requested protocol version and client capabilities.
func (s *Server) initialize(context.Context, json.RawMessage) (any, error) {
	return mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo: mcp.DefaultServerInfo(),
	}, nil
}

func emptyResult(context.Context, json.RawMessage) (any, error) {
	return mcp.EmptyResult{}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, error) {
	return s.tools.ListTools(), nil
}

// callTool treats params it cannot decode as naming no tool, which yields the
// unknown-tool result.
func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.CallToolRequestReceived
	if err := json.Unmarshal(params, &req); err != nil {
		s.log.DebugContext(ctx, "undecodable tools/call params", slog.String("err", err.Error()))
		req = mcp.CallToolRequestReceived{}
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Name})

	res := s.tools.Call(ctx, &req)
	if res.Error != "" {
		s.log.DebugContext(ctx, "tool call failed", slog.String("tool_error", res.Error))
	}
	return res, nil
}
