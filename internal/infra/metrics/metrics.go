package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outbound network and SQL calls",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of outbound network and SQL calls",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "LLM response generation time",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens consumed by LLM calls",
	}, []string{"model", "type"})

	ExecutorTickSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "executor_tick_seconds",
		Help:    "Wall time of one schedule executor tick",
		Buckets: prometheus.DefBuckets,
	})

	AssignmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playlist_assignments_total",
		Help: "Playlist-to-zone assignments attempted by the executor",
	}, []string{"status"})

	FollowUpsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "follow_up_emails_total",
		Help: "Follow-up emails dispatched",
	}, []string{"type", "status"})

	RecommendationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_runs_total",
		Help: "Matcher runs across chat and direct endpoints",
	})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the per-IP limiter",
	}, []string{"endpoint"})
)

// MustRegister registers every collector with the given registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
		ExecutorTickSeconds,
		AssignmentsTotal,
		FollowUpsSentTotal,
		RecommendationsTotal,
		RateLimitedTotal,
	)
}

// ObserveNetworkRequest records the duration and status of one outbound call.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration records duration and token usage of one LLM call.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
