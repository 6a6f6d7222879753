package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/config"
)

// NewLogger builds the process logger. cfg.Output names stdout, stderr or a
// file opened for append; an unopenable file falls back to stderr.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return NewLoggerTo(openOutput(cfg.Output), cfg)
}

// NewLoggerTo creates a logger writing to w, ignoring cfg.Output.
func NewLoggerTo(w io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logger := zerolog.New(w).With().Timestamp()
	if cfg.AddSource {
		logger = logger.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return logger.Logger().Level(level)
}

func openOutput(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return os.Stderr
	}
	return f
}

// parseLevel defaults to info for empty or unknown names.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithUserContext adds the acting user to a logger.
func WithUserContext(logger zerolog.Logger, userID int64) zerolog.Logger {
	return logger.With().Int64("user_id", userID).Logger()
}

// WithPairContext adds both sides of a user-to-user action to a logger.
func WithPairContext(logger zerolog.Logger, userID, targetID int64) zerolog.Logger {
	return logger.With().
		Int64("user_id", userID).
		Int64("target_id", targetID).
		Logger()
}

// WithRoomContext adds chat room fields to a logger.
func WithRoomContext(logger zerolog.Logger, roomID, userID int64) zerolog.Logger {
	return logger.With().
		Int64("room_id", roomID).
		Int64("user_id", userID).
		Logger()
}
