package logger

import (
	"io"
	"log/slog"
	"os"
)

func New(env string) *slog.Logger {
	return NewTo(os.Stdout, env)
}

// NewTo writes JSON records to w. The dev env logs at debug level and
// tags every record with the env.
func NewTo(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("env", env)
}

// Component scopes a logger to one part of the service.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With("component", name)
}
