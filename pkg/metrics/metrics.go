// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal tracks processed conversation turns by final routing decision.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_turns_total",
			Help: "Conversation turns processed, labeled by routing decision",
		},
		[]string{"decision"},
	)

	// TurnDuration tracks end-to-end turn processing duration.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_turn_duration_seconds",
			Help:    "End-to-end turn processing duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"decision"},
	)

	// RoutingRuleHits tracks which routing-policy rule decided each turn.
	RoutingRuleHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_routing_rule_hits_total",
			Help: "Routing policy decisions, labeled by the rule that fired",
		},
		[]string{"rule"},
	)

	// RetrievalAttempts tracks cascade tier attempts and their outcomes.
	RetrievalAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_retrieval_attempts_total",
			Help: "Retrieval cascade attempts, labeled by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// LLMCallDuration tracks classification/generation call duration.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "LLM call duration, labeled by invocation mode",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"mode", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// EscalationsTotal tracks escalations by target team.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_escalations_total",
			Help: "Escalations emitted, labeled by target team",
		},
		[]string{"team"},
	)

	// NotificationFailures tracks dispatcher failures (non-fatal).
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_notification_failures_total",
			Help: "Escalation notifications that failed to dispatch",
		},
	)

	// TicketsTotal tracks tickets opened.
	TicketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_total",
			Help: "Total support tickets opened",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for one processed turn.
func RecordTurn(decision string, duration float64) {
	TurnsTotal.WithLabelValues(decision).Inc()
	TurnDuration.WithLabelValues(decision).Observe(duration)
}

// RecordLLMCall records metrics for one classification or generation call.
func RecordLLMCall(mode, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMCallDuration.WithLabelValues(mode, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
