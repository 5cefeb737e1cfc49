package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

// Init configures the global slog logger. level accepts the usual slog level
// names; anything unknown falls back to warn, the pipeline's quiet default.
func Init(level string) *slog.Logger {
	Logger = New(os.Stdout, level)
	slog.SetDefault(Logger)
	return Logger
}

func New(output io.Writer, level string) *slog.Logger {
	options := &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lv, ok := a.Value.Any().(slog.Level); ok {
					return slog.Attr{Key: slog.LevelKey, Value: slog.StringValue(strings.ToLower(lv.String()))}
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(output, options)
	return slog.New(handler).With("service", "feed-processor")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
