// Package logging provides structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level aliases zerolog's level type.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer
	// Pretty enables human-readable console output for interactive use.
	Pretty bool
}

// Init initializes the global logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel parses a level string, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Debug starts a debug-level log event.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts an info-level log event.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a warn-level log event.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts an error-level log event.
func Error() *zerolog.Event { return Logger.Error() }

// With creates a child logger context.
func With() zerolog.Context { return Logger.With() }

func init() {
	Init(Config{Level: ParseLevel(os.Getenv("ISOCODE_LOG_LEVEL"))})
}
