// Package logging builds the zap logger used across the binary.
package logging

import (
	"go.uber.org/zap"
)

// New returns a development logger for APP_ENV=development and a production
// logger otherwise, and installs it as the zap global.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// SeverityKey is the field that marks critical entries.
const SeverityKey = "severity"

// Critical logs at error level and tags the entry severity=critical.
// zap has no level between Error and DPanic that is safe in development.
func Critical(l *zap.Logger, msg string, fields ...zap.Field) {
	l.Error(msg, append([]zap.Field{zap.String(SeverityKey, "critical")}, fields...)...)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
