package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: JSON to stdout at info level.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
