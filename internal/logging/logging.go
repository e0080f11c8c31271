// Package logging configures the daemon's structured logger. Every
// component below the transport layer receives a *zap.Logger rather than
// reaching for the standard library's log package directly, matching the
// convention used throughout the persistence layer this daemon's storage
// engines are grounded on.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger for the daemon: JSON output in production mode,
// human-readable console output otherwise.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
