package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal tracks completed Eval calls by outcome: "match",
	// "no_match", or "error".
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "predicateeval",
			Name:      "evaluations_total",
			Help:      "Total number of predicate evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// ValidationErrorsTotal tracks predicates rejected for malformed
	// shape (wrong operator count, bad regex, selector in base64 mode).
	ValidationErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "predicateeval",
			Name:      "validation_errors_total",
			Help:      "Total number of predicate validation errors",
		},
	)

	// InjectionErrorsTotal tracks inject scripts that threw or failed
	// to evaluate to a function.
	InjectionErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "predicateeval",
			Name:      "injection_errors_total",
			Help:      "Total number of inject predicate execution errors",
		},
	)

	// EvaluationDuration tracks how long a single top-level Eval call
	// takes, including any nested combinator recursion.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "predicateeval",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of a single predicate evaluation",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RecordEvaluation records the outcome of a completed Eval call.
func RecordEvaluation(outcome string, seconds float64) {
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	EvaluationDuration.Observe(seconds)
}

// RecordValidationError records a predicate rejected during Eval.
func RecordValidationError() {
	ValidationErrorsTotal.Inc()
}

// RecordInjectionError records an inject script failure.
func RecordInjectionError() {
	InjectionErrorsTotal.Inc()
}
