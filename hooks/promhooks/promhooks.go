// Package promhooks provides a Prometheus implementation of the
// [hooks.Metrics] boundary.
//
// All collectors are registered in a custom [prometheus.Registry] (not the
// global default) so that only evaluator metrics appear wherever the host
// mounts the handler.
package promhooks

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calehm/vexil/hooks"
)

// Metrics records evaluator events into Prometheus collectors. It
// implements [hooks.Metrics].
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal *prometheus.CounterVec
	OverridesTotal   prometheus.Counter
	LoadsTotal       prometheus.Counter
	SnapshotFeatures prometheus.Gauge
	RollbacksTotal   *prometheus.CounterVec
	HistoryDepth     prometheus.Gauge
}

// New creates and registers all evaluator metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vexil_evaluations_total",
			Help: "Total number of feature evaluations.",
		}, []string{"decision"}),

		OverridesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vexil_override_evaluations_total",
			Help: "Total number of evaluations short-circuited by an override.",
		}),

		LoadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vexil_snapshot_loads_total",
			Help: "Total number of snapshot loads.",
		}),

		SnapshotFeatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vexil_snapshot_features",
			Help: "Number of features in the current snapshot.",
		}),

		RollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vexil_rollbacks_total",
			Help: "Total number of rollback attempts.",
		}, []string{"outcome"}),

		HistoryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vexil_history_depth",
			Help: "Number of snapshots available to roll back to.",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.OverridesTotal,
		m.LoadsTotal,
		m.SnapshotFeatures,
		m.RollbacksTotal,
		m.HistoryDepth,
	)

	return m
}

// Handler returns an [http.Handler] that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordEvaluation implements [hooks.Metrics].
func (m *Metrics) RecordEvaluation(event hooks.EvaluationEvent) {
	m.EvaluationsTotal.WithLabelValues(event.Decision).Inc()
	if event.Overridden {
		m.OverridesTotal.Inc()
	}
}

// RecordLoad implements [hooks.Metrics].
func (m *Metrics) RecordLoad(event hooks.LoadEvent) {
	m.LoadsTotal.Inc()
	m.SnapshotFeatures.Set(float64(event.FeatureCount))
	m.HistoryDepth.Set(float64(event.HistoryDepth))
}

// RecordRollback implements [hooks.Metrics].
func (m *Metrics) RecordRollback(event hooks.RollbackEvent) {
	outcome := "refused"
	if event.Succeeded {
		outcome = "applied"
	}
	m.RollbacksTotal.WithLabelValues(outcome).Inc()
	if event.Succeeded {
		m.HistoryDepth.Set(float64(event.HistoryDepth))
	}
}
