// Package querytracectl implements the querytracectl command line client.
package querytracectl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// JSON is the default for the -json flag.
	JSON       bool
	HTTPClient *http.Client
	// Stdin supplies the question for "ask -".
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// command describes one API call. render prints a successful body and
// reports false when it could not make sense of it.
type command struct {
	method  string
	path    string
	usage   string
	needArg bool
	render  func(w io.Writer, body []byte) bool
}

var commands = map[string]command{
	"health": {method: http.MethodGet, path: "/v1/health", usage: "health             GET /v1/health"},
	"ready":  {method: http.MethodGet, path: "/v1/ready", usage: "ready              GET /v1/ready"},
	"schema": {method: http.MethodGet, path: "/v1/schema", usage: "schema             GET /v1/schema", render: renderSchema},
	"ask":    {method: http.MethodPost, path: "/v1/query", usage: "ask <question|->   POST /v1/query", needArg: true, render: renderAnswer},
}

var commandOrder = []string{"health", "ready", "schema", "ask"}

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails and 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout, stderr := orDiscard(defaults.Stdout), orDiscard(defaults.Stderr)

	fs := flag.NewFlagSet("querytracectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "QueryTrace API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 3*time.Minute), "HTTP timeout (e.g. 30s)")
	rawJSON := fs.Bool("json", defaults.JSON, "print the raw JSON response")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	name := strings.TrimSpace(fs.Arg(0))
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		writeUsage(stderr)
		return 2
	}

	var payload []byte
	if cmd.needArg {
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "-" {
			read, err := readQuestion(defaults.Stdin)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "read question: %v\n", err)
				return 2
			}
			question = read
		}
		if question == "" {
			_, _ = fmt.Fprintf(stderr, "%s requires a question\n", name)
			return 2
		}
		payload, _ = json.Marshal(map[string]string{"question": question})
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	status, body, err := call(ctx, client, cmd.method, strings.TrimRight(*baseURL, "/")+cmd.path, *apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if status >= 400 {
		if !*rawJSON && renderFailure(stderr, status, body) {
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", status, strings.TrimSpace(string(body)))
		return 1
	}
	if !*rawJSON && cmd.render != nil && cmd.render(stdout, body) {
		return 0
	}
	renderJSON(stdout, body)
	return 0
}

func readQuestion(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}

func call(ctx context.Context, client *http.Client, method, url, apiKey string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

type traceStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

func renderAnswer(w io.Writer, body []byte) bool {
	var answer struct {
		Steps       []traceStep `json:"steps"`
		FinalAnswer string      `json:"final_answer"`
	}
	if err := json.Unmarshal(body, &answer); err != nil || answer.Steps == nil {
		return false
	}
	writeSteps(w, answer.Steps)
	_, _ = fmt.Fprintf(w, "\n%s\n", answer.FinalAnswer)
	return true
}

func renderSchema(w io.Writer, body []byte) bool {
	var out struct {
		Schema string `json:"schema"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Schema == "" {
		return false
	}
	_, _ = fmt.Fprintln(w, out.Schema)
	return true
}

// renderFailure prints the partial trace and message of a pipeline error.
func renderFailure(w io.Writer, status int, body []byte) bool {
	var failure struct {
		Message string `json:"message"`
		Context struct {
			Steps []traceStep `json:"steps"`
		} `json:"context"`
	}
	if err := json.Unmarshal(body, &failure); err != nil || failure.Message == "" {
		return false
	}
	writeSteps(w, failure.Context.Steps)
	_, _ = fmt.Fprintf(w, "http %d: %s\n", status, failure.Message)
	return true
}

func writeSteps(w io.Writer, steps []traceStep) {
	for i, s := range steps {
		_, _ = fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, s.Step, s.Detail)
	}
}

func renderJSON(w io.Writer, body []byte) {
	var value any
	if err := json.Unmarshal(body, &value); err == nil {
		if pretty, err := json.MarshalIndent(value, "", "  "); err == nil {
			_, _ = fmt.Fprintln(w, string(pretty))
			return
		}
	}
	if len(bytes.TrimSpace(body)) > 0 {
		_, _ = fmt.Fprintln(w, string(body))
	}
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: querytracectl [flags] <command>")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		_, _ = fmt.Fprintln(w, "  "+commands[name].usage)
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
