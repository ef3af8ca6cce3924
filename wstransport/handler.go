package wstransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/ggoodman/hello-mcp/internal/logctx"
	"github.com/ggoodman/hello-mcp/mcpservice"
	"github.com/google/uuid"
)

// DefaultReadLimit bounds the size of a single inbound message.
const DefaultReadLimit = 1 << 20

// Handler is an http.Handler that upgrades every request to a websocket and
// serves it with the wrapped mcpservice.Server until either side closes.
type Handler struct {
	srv            *mcpservice.Server
	log            *slog.Logger
	readLimit      int64
	originPatterns []string
}

// New constructs a Handler with defaults and applies options.
func New(srv *mcpservice.Server, opts ...Option) *Handler {
	h := &Handler{
		srv:       srv,
		log:       slog.New(slog.DiscardHandler),
		readLimit: DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept has already written an HTTP error to w.
		h.log.DebugContext(r.Context(), "websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("err", err.Error()),
		)
		return
	}
	c.SetReadLimit(h.readLimit)

	ctx := logctx.WithConnData(r.Context(), &logctx.ConnData{
		ConnID:     uuid.NewString(),
		Transport:  "websocket",
		RemoteAddr: r.RemoteAddr,
	})
	h.log.InfoContext(ctx, "client connected")

	conn := &wsConn{c: c}
	if err := h.srv.ServeConn(ctx, conn); err != nil {
		h.log.DebugContext(ctx, "connection failed", slog.String("err", err.Error()))
		_ = c.CloseNow()
	} else if !conn.closed.Load() {
		_ = c.Close(websocket.StatusNormalClosure, "")
	}

	h.log.InfoContext(ctx, "client disconnected")
}

// wsConn adapts a websocket connection to mcpservice.Conn.
type wsConn struct {
	c      *websocket.Conn
	closed atomic.Bool
}

func (w *wsConn) ReadFrame(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) WriteFrame(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	w.closed.Store(true)
	return w.c.Close(websocket.StatusNormalClosure, "shutdown")
}

// ListenAndServe binds addr and serves h until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, h, log)
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// server down. Request contexts derive from ctx, so open websocket
// connections are closed on cancellation as well.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info("listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
