// Package logging provides a singleton zap logger for the harness.
//
// The harness is a CLI tool, so the default encoder is a colored console
// encoder; suite output (the ✓/✗ marks) goes to stdout separately and the
// logger carries the operational detail underneath it.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init initialises the singleton logger. It is idempotent: only the first
// call has any effect.
func Init(level string) {
	once.Do(func() {
		instance = build(level)
	})
}

// L returns the singleton logger, initialising a default one if Init was
// never called.
func L() *zap.Logger {
	if instance == nil {
		Init("info")
	}
	return instance
}

// Named returns a logger tagged with a component name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes any buffered log entries. Call it with defer in main.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

func build(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true

	l, err := cfg.Build()
	if err != nil {
		l, _ = zap.NewProduction()
	}

	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
