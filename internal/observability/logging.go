// Package observability builds the simulator's zap loggers.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/tactics/internal/config"
)

// NewLogger builds a logger writing to stderr, leaving stdout to the
// encounter transcript.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	return New(cfg, zapcore.Lock(os.Stderr))
}

// New builds a logger writing to ws.
//
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func New(cfg config.LoggingConfig, ws zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	enc, err := encoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(enc, ws, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Named returns a child of logger tagged with a component field and name.
//
// Precondition: logger must be non-nil.
func Named(logger *zap.Logger, component string) *zap.Logger {
	return logger.Named(component).With(zap.String("component", component))
}
