// Package sink provides ResultSink and Observer implementations for the
// brief dispatcher.
package sink

import (
	"log/slog"

	"github.com/tendant/simple-brief/internal/process"
)

// Log writes every callback as a structured log record.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) OnProgress(key process.EntityKey, message string) {
	l.logger.Info("brief progress", "entity", key, "message", message)
}

func (l *Log) OnCompleted(key process.EntityKey, brief string) {
	l.logger.Info("brief ready", "entity", key, "length", len(brief))
}

func (l *Log) OnFailed(key process.EntityKey, reason string) {
	l.logger.Error("brief failed", "entity", key, "reason", reason)
}

func (l *Log) OnTimedOut(key process.EntityKey) {
	l.logger.Warn("brief timed out", "entity", key)
}
