// Package telemetry tracks request, tool, and gateway metrics for the
// shopping agent. Collectors register on the default prometheus registry
// and are served through the server's /metrics endpoint.
package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sense-app/sense-ai-chat/config"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sense_chat_turns_total",
		Help: "Completed chat turns by outcome (ok, error).",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sense_chat_turn_duration_seconds",
		Help:    "Wall time of a full chat turn including all tool steps.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sense_llm_requests_total",
		Help: "LLM calls by model and outcome.",
	}, []string{"model", "outcome"})

	toolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sense_tool_invocations_total",
		Help: "Agent tool invocations by action and outcome.",
	}, []string{"action", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sense_tool_duration_seconds",
		Help:    "Tool execution time by action.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"action"})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sense_search_requests_total",
		Help: "Outbound search API requests by kind (web, shopping) and outcome.",
	}, []string{"kind", "outcome"})

	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sense_fetch_requests_total",
		Help: "Outbound page fetches by outcome.",
	}, []string{"outcome"})
)

// Telemetry records agent activity. All record methods are no-ops when
// telemetry is disabled in config.
type Telemetry struct {
	enabled bool
	logger  *log.Logger
}

func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		enabled: cfg.Enabled,
		logger:  log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordTurn records a completed chat turn.
func (t *Telemetry) RecordTurn(chatID string, steps int, duration time.Duration, err error) {
	if t == nil || !t.enabled {
		return
	}
	turnsTotal.WithLabelValues(outcome(err)).Inc()
	turnDuration.Observe(duration.Seconds())
	t.logger.Printf("Turn: chat=%s steps=%d duration=%v err=%v", chatID, steps, duration, err)
}

// RecordLLMRequest records a single provider call.
func (t *Telemetry) RecordLLMRequest(model string, duration time.Duration, err error) {
	if t == nil || !t.enabled {
		return
	}
	llmRequestsTotal.WithLabelValues(model, outcome(err)).Inc()
	t.logger.Printf("LLM: model=%s duration=%v err=%v", model, duration, err)
}

// RecordToolInvocation records one agent tool execution.
func (t *Telemetry) RecordToolInvocation(action string, duration time.Duration, err error) {
	if t == nil || !t.enabled {
		return
	}
	toolInvocationsTotal.WithLabelValues(action, outcome(err)).Inc()
	toolDuration.WithLabelValues(action).Observe(duration.Seconds())
	t.logger.Printf("Tool: action=%s duration=%v err=%v", action, duration, err)
}

// RecordSearch records an outbound search API request.
func (t *Telemetry) RecordSearch(kind string, results int, err error) {
	if t == nil || !t.enabled {
		return
	}
	searchRequestsTotal.WithLabelValues(kind, outcome(err)).Inc()
	t.logger.Printf("Search: kind=%s results=%d err=%v", kind, results, err)
}

// RecordFetch records an outbound page fetch.
func (t *Telemetry) RecordFetch(url string, chars int, err error) {
	if t == nil || !t.enabled {
		return
	}
	fetchRequestsTotal.WithLabelValues(outcome(err)).Inc()
	t.logger.Printf("Fetch: url=%s chars=%d err=%v", url, chars, err)
}
