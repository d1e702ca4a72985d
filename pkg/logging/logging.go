// Package logging configures the process-wide slog logger used by grpctl
// and the packages it drives.
package logging

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ctxKey is the context key under which AppendCtx stores extra attributes
// so a ContextHandler can fold them into every record logged through that
// context, without threading a logger value through every call site.
type ctxKey struct{}

// Logger builds the default *slog.Logger. When json is false the handler
// writes human-readable text (suitable for a terminal); otherwise it emits
// structured JSON lines. w is the base output stream.
func Logger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{Handler: handler})
}

// FileLogger is Logger but with output routed through a rotating file
// sink instead of an arbitrary io.Writer. Filename follows lumberjack's
// own rotation defaults (100MB max size, no age/backup limit imposed
// beyond lumberjack's built-in behaviour).
func FileLogger(path string, json bool, level slog.Level) *slog.Logger {
	sink := &lumberjack.Logger{
		Filename: path,
		MaxSize:  100,
	}
	return Logger(sink, json, level)
}

// AppendCtx returns a derived context carrying extra slog.Attr values that
// any *slog.Logger built by Logger/FileLogger will attach to every record
// logged with that context.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// ctxHandler wraps a slog.Handler and injects attributes stashed by
// AppendCtx into every record that flows through it.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{Handler: h.Handler.WithGroup(name)}
}
