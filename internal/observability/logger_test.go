package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/querytrace/querytrace/internal/config"
)

func TestNewLoggerJSONCarriesServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileProd,
		Service:       config.ServiceConfig{Name: "querytrace-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	NewLogger(cfg, &buf).Info("hello", slog.String("stage", "connect"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (%q)", err, buf.String())
	}
	if line["service"] != "querytrace-api" || line["profile"] != "prod" || line["stage"] != "connect" {
		t.Fatalf("log line = %#v", line)
	}
}

func TestNewLoggerConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Service:       config.ServiceConfig{Name: "querytrace-seed"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn},
	}
	logger := NewLogger(cfg, &buf)
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "querytrace-seed") {
		t.Fatalf("console output = %q", out)
	}
}

func TestNewLoggerNilWriter(t *testing.T) {
	NewLogger(config.Config{}, nil).Error("discarded")
}

func TestNewLoggerAddsTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Service:       config.ServiceConfig{Name: "querytrace-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelDebug, LogJSON: true},
	}
	logger := NewLogger(cfg, &buf).With("component", "pipeline")
	logger.InfoContext(ContextWithTraceID(context.Background(), "trace-9"), "stage started")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (%q)", err, buf.String())
	}
	if line["trace_id"] != "trace-9" || line["component"] != "pipeline" {
		t.Fatalf("log line = %#v", line)
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
}
