package helpers

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// NewNoopLogger returns a logger that discards all records.
func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewLogger returns the application logger. Verbosity lowers the level from WarnLevel
// in steps of four, matching the slog level spacing.
// Lambda invocations always log JSON; interactive terminals get a colourised handler.
func NewLogger(w io.Writer, verbosity int, callerTrace bool) *slog.Logger {
	level := slog.LevelWarn - slog.Level(verbosity*4)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) && os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			AddSource:  callerTrace,
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: callerTrace,
		Level:     level,
	}))
}
