// Package Logging wraps go.uber.org/zap to give the engine the four
// verbosity levels spec.md §6 names (MIN/MED/MAX/DEBUG) on top of zap's
// Info/Debug levels, since zap itself has no native four-tier scale.
package Logging

import (
	"go.uber.org/zap"
)

// Level is one of the engine's four verbosity tiers.
type Level int

const (
	Min Level = iota
	Med
	Max
	Debug
)

// Logger gates zap output by Level, matching the timing-breakdown and
// per-insert log lines spec.md §6 describes: VB_MIN/VB_MED/VB_MAX/VB_DEBUG
// lines in the original become Logger.Min/Med/Max/Debug calls here.
type Logger struct {
	sugar     *zap.SugaredLogger
	threshold Level
}

// New builds a Logger at the given threshold; production defaults to Min.
func New(sugar *zap.SugaredLogger, threshold Level) *Logger {
	return &Logger{sugar: sugar, threshold: threshold}
}

// NewProduction is the CLI's default: a production zap config (JSON,
// sampled) wrapped at Min verbosity.
func NewProduction() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(z.Sugar(), Min), nil
}

// NewNop returns a Logger that discards everything, for callers (and
// tests) that don't want to wire a real sink.
func NewNop() *Logger {
	return New(zap.NewNop().Sugar(), Min)
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level > l.threshold {
		return
	}
	if level == Debug {
		l.sugar.Debugw(msg, args...)
		return
	}
	l.sugar.Infow(msg, args...)
}

func (l *Logger) Min(msg string, args ...interface{})   { l.log(Min, msg, args...) }
func (l *Logger) Med(msg string, args ...interface{})   { l.log(Med, msg, args...) }
func (l *Logger) Max(msg string, args ...interface{})   { l.log(Max, msg, args...) }
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(Debug, msg, args...) }

// Sync flushes any buffered log entries; callers should defer it.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
