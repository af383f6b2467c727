package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_translation_attempts_total",
			Help: "Total number of generate-then-validate rounds.",
		},
	)
	validationViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscribe_validation_violations_total",
			Help: "Total number of validation violations by kind.",
		},
		[]string{"kind"},
	)
	sessionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscribe_sessions_total",
			Help: "Total number of finished sessions by outcome.",
		},
		[]string{"outcome"},
	)
	modelLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlscribe_model_latency_seconds",
			Help:    "Model completion latency per attempt.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(
		translationAttemptsTotal,
		validationViolationsTotal,
		sessionOutcomesTotal,
		modelLatencySeconds,
	)
}

func IncrementTranslationAttempt() {
	translationAttemptsTotal.Inc()
}

func IncrementValidationViolation(kind string) {
	validationViolationsTotal.WithLabelValues(kind).Inc()
}

func IncrementSessionOutcome(outcome string) {
	sessionOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveModelLatency(duration time.Duration) {
	modelLatencySeconds.Observe(duration.Seconds())
}
