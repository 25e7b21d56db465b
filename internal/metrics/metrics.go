// Package metrics exposes the decision core's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts combined signals by action and regime.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfuse",
		Name:      "decisions_total",
		Help:      "Combined signals emitted, by action and regime",
	}, []string{"action", "regime"})

	// RetrainsTotal counts predictor retrain attempts by outcome.
	RetrainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfuse",
		Name:      "retrains_total",
		Help:      "Predictor retrain attempts, by outcome",
	}, []string{"outcome"})

	// RetrainDuration observes wall time spent in a retrain cycle.
	RetrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantfuse",
		Name:      "retrain_duration_seconds",
		Help:      "Wall time of predictor retrain cycles",
		Buckets:   prometheus.DefBuckets,
	})

	// SkippedBars counts bars skipped for insufficient history.
	SkippedBars = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quantfuse",
		Name:      "skipped_bars_total",
		Help:      "Bars skipped because the trailing window was not ready",
	})

	// RegimeTransitions counts observed regime changes.
	RegimeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantfuse",
		Name:      "regime_transitions_total",
		Help:      "Regime changes observed during simulation",
	}, []string{"from", "to"})
)
