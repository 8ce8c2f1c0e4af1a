// Package hooks defines the observability boundary the evaluator consumes.
// The core never logs or records metrics directly; it calls these interfaces,
// which default to no-ops. Hosts plug in real sinks (see NewSlogLogger and
// the promhooks subpackage) without the core taking on their dependencies.
package hooks

import (
	"context"
	"log/slog"

	"github.com/calehm/vexil/feature"
)

// Logger receives diagnostic messages from the core. Message producers are
// lazy so disabled levels cost nothing beyond a nil check.
type Logger interface {
	Debug(msg func() string)
	Info(msg func() string)
	Warn(msg func() string)
	Error(msg func() string)
}

// EvaluationEvent describes one completed evaluation.
type EvaluationEvent struct {
	Feature    *feature.Feature
	Decision   string
	Overridden bool
}

// LoadEvent describes one snapshot load.
type LoadEvent struct {
	FeatureCount int
	HistoryDepth int
	Version      string
}

// RollbackEvent describes one rollback attempt, successful or not.
type RollbackEvent struct {
	Steps        int
	Succeeded    bool
	HistoryDepth int
}

// Metrics receives operational events from the core.
type Metrics interface {
	RecordEvaluation(EvaluationEvent)
	RecordLoad(LoadEvent)
	RecordRollback(RollbackEvent)
}

// NopLogger returns a Logger that discards everything without evaluating
// message producers.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(func() string) {}
func (nopLogger) Info(func() string)  {}
func (nopLogger) Warn(func() string)  {}
func (nopLogger) Error(func() string) {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) RecordEvaluation(EvaluationEvent) {}
func (nopMetrics) RecordLoad(LoadEvent)             {}
func (nopMetrics) RecordRollback(RollbackEvent)     {}

// NewSlogLogger adapts a [slog.Logger]. Producers run only when the
// corresponding level is enabled.
func NewSlogLogger(logger *slog.Logger) Logger {
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Debug(msg func() string) { l.log(slog.LevelDebug, msg) }
func (l slogLogger) Info(msg func() string)  { l.log(slog.LevelInfo, msg) }
func (l slogLogger) Warn(msg func() string)  { l.log(slog.LevelWarn, msg) }
func (l slogLogger) Error(msg func() string) { l.log(slog.LevelError, msg) }

func (l slogLogger) log(level slog.Level, msg func() string) {
	if l.logger == nil || msg == nil {
		return
	}
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg())
}
