// Package obslog wraps go.uber.org/zap for the structured, machine-parseable
// logging the scanner emits per pass and per evaluation rejection (in debug
// mode). It is constructed explicitly and passed to collaborators rather
// than held as package-level global state.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger per the configured level and format ("json" or
// "console").
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
