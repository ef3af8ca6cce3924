package mcpservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Conn is one open, message-framed, bidirectional channel to a single peer.
// Transports adapt their connection type to it.
type Conn interface {
	// ReadFrame blocks for the next inbound frame. It returns io.EOF once the
	// peer has closed the channel.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame sends one complete frame.
	WriteFrame(ctx context.Context, frame []byte) error
	// Close closes the channel from the server side.
	Close() error
}

// ServeConn runs the per-connection loop until the channel closes. Frames are
// processed strictly in arrival order: the next frame is not read until the
// response to the current one has been written.
//
// A peer close (io.EOF) or context cancellation ends the loop with a nil
// error, as does a shutdown request, after which ServeConn closes conn
// itself. Read and write failures are returned wrapped; no further writes are
// attempted once one has failed.
func (s *Server) ServeConn(ctx context.Context, conn Conn) error {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		resp, closeAfter := s.Handle(ctx, frame)
		if resp != nil {
			if err := conn.WriteFrame(ctx, resp); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		}

		if closeAfter {
			if err := conn.Close(); err != nil {
				s.log.DebugContext(ctx, "close after shutdown failed", slog.String("err", err.Error()))
			}
			return nil
		}
	}
}
