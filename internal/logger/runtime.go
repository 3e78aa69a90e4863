package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// contextKey is a private type to avoid collisions in context.
type contextKey string

const (
	ctxRID     contextKey = "rid"
	ctxUserKey contextKey = "user_key"
	ctxLogger  contextKey = "logger"
)

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns the global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok {
		return l
	}
	return L
}

// WithRID attaches a request correlation id to the context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts the rid from context if present.
func RIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxRID).(string); ok {
		return s
	}
	return ""
}

// WithUserKey attaches the channel-qualified user key to the context.
func WithUserKey(ctx context.Context, userKey string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if userKey == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxUserKey, userKey)
}

// UserKeyFrom extracts the user key from context if present.
func UserKeyFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxUserKey).(string); ok {
		return s
	}
	return ""
}

// BuildRID composes a correlation id from an update id and user key.
func BuildRID(updateID int, userKey string) string {
	return fmt.Sprintf("u%d-%s", updateID, userKey)
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		if _, seen := fields["rid"]; !seen {
			fields["rid"] = rid
		}
	}
	if uk := UserKeyFrom(ctx); uk != "" {
		if _, seen := fields["user_key"]; !seen {
			fields["user_key"] = uk
		}
	}
}
