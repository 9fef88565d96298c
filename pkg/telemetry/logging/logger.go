package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures logger construction.
type Options struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// Format is the output format: json or text.
	Format string

	// RedactPII masks phone numbers, VIN codes, and credentials in
	// string attributes.
	RedactPII bool

	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer
}

// New creates a structured logger from the given options.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}
	if opts.RedactPII {
		redactor := NewRedactor()
		handlerOpts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			return redactor.RedactAttr(a)
		}
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(handler)
}

// Setup creates a logger and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to a slog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
