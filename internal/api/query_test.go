package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/querytrace/querytrace/internal/agent"
	"github.com/querytrace/querytrace/internal/nlquery"
)

const machinesQuestion = "What are the top 3 machine types by breakdown frequency?"

type scriptedRunner struct {
	sql    string
	answer string
	err    error
}

func (s scriptedRunner) Run(_ context.Context, _, _ string, sink agent.Sink) (agent.Result, error) {
	sink.OnCompletion("")
	if s.err != nil {
		return agent.Result{}, s.err
	}
	sink.OnToolResult(s.sql)
	sink.OnCompletion(s.answer)
	return agent.Result{FinalAnswer: s.answer, Rounds: 2, ToolCalls: 1}, nil
}

type runnerBuilder struct {
	runner agent.Runner
	err    error
}

func (b runnerBuilder) Build(context.Context) (agent.Runner, error) { return b.runner, b.err }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newQueryHandler(t *testing.T, db pinger, builder runnerBuilder) http.Handler {
	t.Helper()
	svc := nlquery.NewService(db, staticSchema(`CREATE TABLE "Machines" (machine_type TEXT)`), builder, nil)
	return NewHandler(testConfig(t, nil), Dependencies{Answerer: svc})
}

func TestQueryEndpointReturnsTrace(t *testing.T) {
	sql := "SELECT machine_type FROM Machines GROUP BY machine_type ORDER BY SUM(breakdown_frequency) DESC LIMIT 3"
	h := newQueryHandler(t, pinger{}, runnerBuilder{runner: scriptedRunner{sql: sql, answer: "Excavator, Drill, Loader"}})

	for _, path := range []string{"/query", "/v1/query"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"question":"`+machinesQuestion+`"}`))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body = %s", path, rr.Code, rr.Body.String())
		}

		body := decodeBody(t, rr)
		if body["final_answer"] != "Excavator, Drill, Loader" {
			t.Fatalf("final_answer = %v", body["final_answer"])
		}
		steps := body["steps"].([]any)
		if len(steps) != 6 {
			t.Fatalf("steps = %#v", steps)
		}
		last := steps[5].(map[string]any)
		if last["step"] != "Final Answer Generated" {
			t.Fatalf("last step = %#v", last)
		}
		queries := body["sql_queries"].([]any)
		if len(queries) != 1 || queries[0] != sql {
			t.Fatalf("sql_queries = %#v", queries)
		}
		if got := len(body["llm_responses"].([]any)); got != 2 {
			t.Fatalf("llm_responses = %d", got)
		}
	}
}

func TestQueryEndpointStageErrors(t *testing.T) {
	tests := []struct {
		name    string
		db      pinger
		builder runnerBuilder
		code    string
		message string
		stage   string
	}{
		{
			name:    "connection",
			db:      pinger{err: errors.New("connection refused")},
			code:    "DATABASE_CONNECTION_ERROR",
			message: "Database connection error.",
			stage:   "connect",
		},
		{
			name:    "agent init",
			builder: runnerBuilder{err: &agent.Error{Phase: agent.PhaseInit, Err: agent.ErrMissingAPIKey}},
			code:    "AGENT_INIT_ERROR",
			message: "Agent initialization error.",
			stage:   "agent_init",
		},
		{
			name:    "generation",
			builder: runnerBuilder{runner: scriptedRunner{err: &agent.Error{Phase: agent.PhaseRun, Err: agent.ErrRunTimeout}}},
			code:    "QUERY_GENERATION_ERROR",
			message: "Error generating SQL query.",
			stage:   "generate_query",
		},
		{
			name:    "execution",
			builder: runnerBuilder{runner: scriptedRunner{sql: "SELECT 1", answer: ""}},
			code:    "QUERY_EXECUTION_ERROR",
			message: "Error executing SQL query.",
			stage:   "execute_query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newQueryHandler(t, tt.db, tt.builder)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"q"}`)))

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["error_code"] != tt.code {
				t.Fatalf("error_code = %v", body["error_code"])
			}
			if body["message"] != tt.message || body["detail"] != tt.message {
				t.Fatalf("message = %v detail = %v", body["message"], body["detail"])
			}
			ctx := body["context"].(map[string]any)
			if ctx["stage"] != tt.stage {
				t.Fatalf("stage = %v", ctx["stage"])
			}
			if len(ctx["steps"].([]any)) < 2 {
				t.Fatalf("steps = %#v", ctx["steps"])
			}
		})
	}
}

func TestQueryEndpointValidatesBody(t *testing.T) {
	h := newQueryHandler(t, pinger{}, runnerBuilder{runner: scriptedRunner{answer: "x"}})

	cases := map[string]string{
		`{"question":"  "}`:          "QUESTION_REQUIRED",
		`{"question":"q","sql":"x"}`: "INVALID_JSON",
		`not json`:                   "INVALID_JSON",
	}
	for payload, code := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(payload)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", payload, rr.Code)
		}
		if body := decodeBody(t, rr); body["error_code"] != code {
			t.Fatalf("%s: error_code = %v", payload, body["error_code"])
		}
	}
}

func TestQueryEndpointNotConfigured(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":"q"}`)))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}
