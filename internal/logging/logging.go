// Package logging builds the service's slog logger: JSON records at a
// configurable level, written to stdout and optionally to a rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger behaviour.
type Config struct {
	Level string // debug, info, warn, error
	File  string // rotating log file; stdout only when empty
}

// ConfigFromEnv reads TRANSIT_LOG_LEVEL and TRANSIT_LOG_FILE.
func ConfigFromEnv() Config {
	return Config{
		Level: os.Getenv("TRANSIT_LOG_LEVEL"),
		File:  os.Getenv("TRANSIT_LOG_FILE"),
	}
}

// New constructs a JSON logger writing to out and, when cfg.File is set, to
// a lumberjack-rotated file. The returned closer releases the file.
func New(cfg Config, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  64, // MB
			MaxAge:   14,
			Compress: true,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return slog.New(h), closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
