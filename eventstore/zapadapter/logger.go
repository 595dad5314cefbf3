// Package zapadapter implements the eventstore logging interfaces on top of
// go.uber.org/zap, for applications already standardized on zap.
package zapadapter

import (
	"go.uber.org/zap"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// Logger implements eventstore.Logger by forwarding the slog-style key-value
// args to a zap sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger wraps the given zap logger. The caller keeps ownership: sync and
// level handling stay on their side.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{sugar: logger.Sugar()}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

var _ eventstore.Logger = (*Logger)(nil)
