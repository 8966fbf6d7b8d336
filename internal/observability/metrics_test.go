package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDomainMetricsHelpers(t *testing.T) {
	before := testutil.ToFloat64(queryRequestsTotal.WithLabelValues("success"))
	ObserveQuery("success", 2*time.Second)
	if got := testutil.ToFloat64(queryRequestsTotal.WithLabelValues("success")); got != before+1 {
		t.Fatalf("success counter = %f, want %f", got, before+1)
	}

	toolBefore := testutil.ToFloat64(agentToolCallsTotal.WithLabelValues("sql_db_query", "error"))
	ObserveToolCall("sql_db_query", true)
	if got := testutil.ToFloat64(agentToolCallsTotal.WithLabelValues("sql_db_query", "error")); got != toolBefore+1 {
		t.Fatalf("tool counter = %f", got)
	}

	sinkBefore := testutil.ToFloat64(sinkFailuresTotal)
	IncrementSinkFailure()
	if got := testutil.ToFloat64(sinkFailuresTotal); got != sinkBefore+1 {
		t.Fatalf("sink failures = %f", got)
	}

	ObserveStage("connect", false, time.Millisecond)
	IncrementAgentCompletion()
}
