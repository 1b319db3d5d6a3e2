// Package meshlog is the node engine's logging collaborator.
//
// The teacher's pkg/logger exposes a small set of leveled, package-level
// functions (Debug/Info/Warn/Error/...) wrapping the standard log package
// with ANSI color. This package keeps that call shape but backs it with
// go.uber.org/zap's SugaredLogger, the logging library the retrieval
// pack's own mesh-adjacent project (the meshtastic message relay) depends
// on for exactly this purpose.
package meshlog

import "go.uber.org/zap"

// Logger is the concrete logger that satisfies pkg/meshnode's Logger
// interface. A nil *Logger is valid
// and every method is a no-op, so logging is always an optional
// collaborator rather than a required one.
type Logger struct {
	z *zap.SugaredLogger
}

// New builds a production-configured Logger.
func New() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar()}, nil
}

// NewDevelopment builds a human-readable console Logger suited
// to cmd/meshdemo and tests.
func NewDevelopment() (*Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z.Sugar()}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

func (l *Logger) Debugw(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Debugw(msg, kv...)
}

func (l *Logger) Infow(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Infow(msg, kv...)
}

func (l *Logger) Warnw(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Warnw(msg, kv...)
}

func (l *Logger) Errorw(msg string, kv ...interface{}) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Errorw(msg, kv...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}
