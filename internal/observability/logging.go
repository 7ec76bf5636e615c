// Package observability carries per-request logging context through
// context.Context and folds it into every slog record.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/clientboot/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	RequestID string
	ClientID  string
	Instance  int
	// hasInstance distinguishes instance 0 from unset.
	hasInstance bool
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	lc := extractLogContext(ctx)
	lc.RequestID = id
	return context.WithValue(ctx, logContextKey, lc)
}

// WithClientID adds the activation client ID to the context.
func WithClientID(ctx context.Context, id string) context.Context {
	lc := extractLogContext(ctx)
	lc.ClientID = id
	return context.WithValue(ctx, logContextKey, lc)
}

// WithInstance tags the context with a coordinator instance number.
func WithInstance(ctx context.Context, n int) context.Context {
	lc := extractLogContext(ctx)
	lc.Instance, lc.hasInstance = n, true
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

// RequestID returns the request ID carried by ctx, if any.
func RequestID(ctx context.Context) string {
	return extractLogContext(ctx).RequestID
}

func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func logAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	var attrs []slog.Attr
	if lc.RequestID != "" {
		attrs = append(attrs, logfields.RequestID(lc.RequestID))
	}
	if lc.ClientID != "" {
		attrs = append(attrs, logfields.ClientID(lc.ClientID))
	}
	if lc.hasInstance {
		attrs = append(attrs, logfields.Instance(lc.Instance))
	}
	return attrs
}

// ContextHandler decorates a slog.Handler so that records logged with a
// context pick up the LogContext attributes.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{inner: h}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := logAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
