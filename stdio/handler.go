package stdio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ggoodman/hello-mcp/internal/logctx"
	"github.com/ggoodman/hello-mcp/mcpservice"
	"github.com/google/uuid"
)

// maxLineSize bounds a single inbound line.
const maxLineSize = 1 << 20

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
type Handler struct {
	srv          *mcpservice.Server
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv *mcpservice.Server, opts ...Option) *Handler {
	h := &Handler{
		srv:          srv,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.New(slog.DiscardHandler),
		userProvider: OSUserProvider{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the stdio event loop until EOF on the reader, cancellation of
// ctx, or a shutdown request. It is safe to call at most once per Handler.
// Blank lines are ignored.
func (h *Handler) Serve(ctx context.Context) error {
	peer := "stdio"
	if uid, err := h.userProvider.CurrentUserID(); err == nil && uid != "" {
		peer = uid + "@stdio"
	}
	ctx = logctx.WithConnData(ctx, &logctx.ConnData{
		ConnID:     uuid.NewString(),
		Transport:  "stdio",
		RemoteAddr: peer,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := &lineConn{
		w:     h.w,
		lines: make(chan []byte),
		errs:  make(chan error, 1),
	}
	go conn.scan(ctx, h.r)

	h.l.InfoContext(ctx, "client connected")
	defer h.l.InfoContext(ctx, "client disconnected")

	if err := h.srv.ServeConn(ctx, conn); err != nil {
		return fmt.Errorf("stdio: %w", err)
	}
	return nil
}

// lineConn adapts newline-delimited streams to mcpservice.Conn.
type lineConn struct {
	w     io.Writer
	mu    sync.Mutex
	lines chan []byte
	errs  chan error
}

// scan feeds lines to ReadFrame. A goroutine lets ReadFrame honor context
// cancellation even though reads on r cannot be interrupted.
func (c *lineConn) scan(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		select {
		case c.lines <- frame:
		case <-ctx.Done():
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.errs <- err
}

func (c *lineConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case line := <-c.lines:
		return line, nil
	case err := <-c.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *lineConn) WriteFrame(_ context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(append(frame, '\n')); err != nil {
		return err
	}
	return nil
}

// Close is a no-op: stdout belongs to the process. Returning from Serve is
// what ends the session.
func (c *lineConn) Close() error {
	return nil
}
