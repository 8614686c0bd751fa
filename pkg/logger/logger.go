package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the JSON logger for service writing to stdout.
func New(service, appEnv string) *slog.Logger {
	return NewWithWriter(service, appEnv, os.Stdout)
}

// NewWithWriter is New with an explicit sink. local and dev log at debug.
func NewWithWriter(service, appEnv string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch appEnv {
	case "local", "dev":
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", service, "env", appEnv)
}

type ctxKey struct{}

func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request logger stored by Middleware, or slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
