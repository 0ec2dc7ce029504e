package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger used by every binary. Records carry the
// otel trace and span ids when the context has a span.
func NewLogger(env, service string) *slog.Logger {
	return newLogger(os.Stdout, env, service)
}

func newLogger(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(NewTraceHandler(handler))
	if service != "" {
		logger = logger.With(slog.String("service", service))
	}

	return logger
}
