// Package observability configures structured logging for the hybrid
// store: a root zerolog logger with stack traces on wrapped errors and
// a console/json output switch, plus helpers deriving child loggers
// scoped to this domain's identifiers (component, singularity).
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logger type threaded through the module. It is
// zerolog's logger directly — call sites use its fluent event API —
// with construction and domain scoping centralized here.
type Logger = zerolog.Logger

// LogConfig holds root logger configuration.
type LogConfig struct {
	Level       string
	Format      string // json or console
	Output      io.Writer
	ServiceName string
}

// NewLogger builds the process's root logger.
func NewLogger(cfg LogConfig) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var zl zerolog.Logger
	if cfg.Format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		})
	} else {
		zl = zerolog.New(output)
	}

	zl = zl.With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()

	return &zl
}

// DefaultLogger returns a console logger for tests and local tooling.
func DefaultLogger() *Logger {
	return NewLogger(LogConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "hybridstore",
	})
}

// WithComponent derives a child logger tagged with a subsystem name
// (hybridstore, ingestion, audit, ...), so one process log stream can
// be filtered per component.
func WithComponent(l *Logger, component string) *Logger {
	child := l.With().Str("component", component).Logger()
	return &child
}

// WithSingularity derives a child logger scoped to a tenant id, for
// request paths that carry one.
func WithSingularity(l *Logger, singularityID int64) *Logger {
	child := l.With().Int64("singularity_id", singularityID).Logger()
	return &child
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
