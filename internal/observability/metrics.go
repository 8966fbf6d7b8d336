package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrace_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytrace_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path", "status"},
	)

	queryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrace_query_requests_total",
			Help: "Total number of natural-language query requests by outcome stage.",
		},
		[]string{"outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querytrace_query_duration_seconds",
			Help:    "End-to-end latency of natural-language query requests.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytrace_stage_duration_seconds",
			Help:    "Latency of individual pipeline stages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)
	agentRoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querytrace_agent_completions_total",
			Help: "Total number of model completions requested by the reasoning agent.",
		},
	)
	agentToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytrace_agent_tool_calls_total",
			Help: "Total number of tool invocations by tool and result.",
		},
		[]string{"tool", "result"},
	)
	sinkFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querytrace_event_sink_failures_total",
			Help: "Total number of swallowed event capture failures.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		queryRequestsTotal,
		queryDurationSeconds,
		stageDurationSeconds,
		agentRoundsTotal,
		agentToolCallsTotal,
		sinkFailuresTotal,
	)
}

// ObserveQuery records a finished request. outcome is "success" or the failing stage.
func ObserveQuery(outcome string, elapsed time.Duration) {
	queryRequestsTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveStage(stage string, ok bool, elapsed time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	stageDurationSeconds.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

func IncrementAgentCompletion() {
	agentRoundsTotal.Inc()
}

func ObserveToolCall(tool string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	agentToolCallsTotal.WithLabelValues(tool, result).Inc()
}

func IncrementSinkFailure() {
	sinkFailuresTotal.Inc()
}
