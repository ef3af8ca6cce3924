package wstransport

import "log/slog"

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound message. A
// larger message fails the connection. Non-positive values are ignored.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithOriginPatterns lists host patterns (path.Match syntax) of browser
// origins allowed to connect in addition to the request's own host.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.originPatterns = append(h.originPatterns, patterns...)
	}
}
