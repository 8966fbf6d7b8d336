package querytracectl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRunAskPrintsTrace(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey, gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		var body struct {
			Question string `json:"question"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body.Question
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"steps":[{"step":"Connecting to Database","detail":"Establishing connection to the database to retrieve schema."}],"final_answer":"3 excavators","llm_responses":[],"sql_queries":[]}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"ask", "How many", "excavators?",
	}, Options{Stdout: &stdout, Stderr: &stderr, Timeout: 2 * time.Second})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/query" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" || gotQuestion != "How many excavators?" {
		t.Fatalf("api_key=%q question=%q", gotAPIKey, gotQuestion)
	}
	out := stdout.String()
	if !strings.Contains(out, "1. Connecting to Database") || !strings.Contains(out, "3 excavators") {
		t.Fatalf("output = %q", out)
	}
}

func TestRunAskPrintsPartialTraceOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"DATABASE_CONNECTION_ERROR","message":"Database connection error.","context":{"stage":"connect","steps":[{"step":"Database Connection Failed","detail":"refused"}]}}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "q"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "Database Connection Failed") || !strings.Contains(stderr.String(), "http 500: Database connection error.") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ask", "  "}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestRunSchemaPrintsText(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"schema":"CREATE TABLE \"Machines\" (machine_id TEXT)"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/schema" || !strings.HasPrefix(stdout.String(), `CREATE TABLE "Machines"`) {
		t.Fatalf("path=%s output=%q", gotPath, stdout.String())
	}
}

func TestRunHealthPrettyPrintsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "health"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("output = %q", stdout.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ready"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"unknown"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output")
	}
}

func TestRunJSONFlagPrintsRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"steps":[],"final_answer":"none","llm_responses":["a"],"sql_queries":["b"]}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-json", "ask", "q"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"llm_responses": [`) {
		t.Fatalf("output = %q", stdout.String())
	}
}

func TestRunAskReadsQuestionFromStdin(t *testing.T) {
	var gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body.Question
		_, _ = w.Write([]byte(`{"steps":[{"step":"Final Answer Generated","detail":"ok"}],"final_answer":"Drill"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "-"}, Options{
		Stdin:  strings.NewReader("Which machine type\nbreaks down most?\n"),
		Stdout: &stdout,
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotQuestion != "Which machine type breaks down most?" {
		t.Fatalf("question = %q", gotQuestion)
	}
}

func TestRunAskFromEmptyStdinIsUsageError(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"ask", "-"}, Options{Stdin: strings.NewReader("  \n"), Stderr: &stderr})
	if code != 2 || !strings.Contains(stderr.String(), "requires a question") {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
}

func TestRunJSONDefaultFromOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"schema":"CREATE TABLE Machines (machine_id TEXT)"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema"}, Options{JSON: true, Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"schema": "CREATE TABLE`) {
		t.Fatalf("output = %q", stdout.String())
	}
}
