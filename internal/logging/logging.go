// Package logging configures the process-wide zerolog logger.
// Diagnostics go to stderr; stdout is reserved for the single JSON
// response object.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Init must be called before use.
var Logger zerolog.Logger

// Init initializes the global logger writing to stderr. The level
// comes from the given string (debug|info|warn|error); anything else
// defaults to warn so a clean interactive run prints nothing.
func Init(level string) {
	var lvl zerolog.Level
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.WarnLevel
	}

	zerolog.SetGlobalLevel(lvl)

	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
