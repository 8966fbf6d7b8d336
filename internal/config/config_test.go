package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("querytrace-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.URL != "sqlite:///mining_machines.db" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Database.SchemaSampleRows != 3 {
		t.Fatalf("Database.SchemaSampleRows = %d", cfg.Database.SchemaSampleRows)
	}
	if cfg.Database.SchemaCacheTTL != 0 {
		t.Fatalf("Database.SchemaCacheTTL = %s", cfg.Database.SchemaCacheTTL)
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Fatalf("Agent.MaxIterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.RunTimeout != 120*time.Second {
		t.Fatalf("Agent.RunTimeout = %s", cfg.Agent.RunTimeout)
	}
	if cfg.Agent.TopK != 10 {
		t.Fatalf("Agent.TopK = %d", cfg.Agent.TopK)
	}
	if cfg.Agent.AllowWrites {
		t.Fatal("Agent.AllowWrites should default to false")
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gpt-4" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to false in dev")
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if got := cfg.CORS.Origins(); !reflect.DeepEqual(got, []string{"*"}) {
		t.Fatalf("CORS.Origins() = %#v", got)
	}
	if cfg.Seed.MachineRows != 4000 {
		t.Fatalf("Seed.MachineRows = %d", cfg.Seed.MachineRows)
	}
	if cfg.Seed.CSVTable != "crop_production" {
		t.Fatalf("Seed.CSVTable = %q", cfg.Seed.CSVTable)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("querytrace-api", mapLookup(map[string]string{"QUERYTRACE_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadTestProfileUsesMemoryDatabase(t *testing.T) {
	cfg, err := Load("querytrace-api", mapLookup(map[string]string{"QUERYTRACE_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "sqlite://" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.HTTP.Address != ":18000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYTRACE_PROFILE":                     "test",
		"QUERYTRACE_SERVICE_NAME":                "querytrace-custom",
		"QUERYTRACE_HTTP_ADDR":                   ":9999",
		"QUERYTRACE_HTTP_READ_TIMEOUT":           "2s",
		"QUERYTRACE_DATABASE_URL":                "postgresql://u:p@db:5432/mines",
		"QUERYTRACE_DATABASE_MAX_OPEN_CONNS":     "42",
		"QUERYTRACE_DATABASE_SCHEMA_SAMPLE_ROWS": "0",
		"QUERYTRACE_DATABASE_SCHEMA_TABLES":      "Machines, crop_production",
		"QUERYTRACE_DATABASE_SCHEMA_CACHE_TTL":   "30s",
		"QUERYTRACE_AGENT_MAX_ITERATIONS":        "4",
		"QUERYTRACE_AGENT_RUN_TIMEOUT":           "9s",
		"QUERYTRACE_AGENT_TOP_K":                 "3",
		"QUERYTRACE_AGENT_ALLOW_WRITES":          "true",
		"QUERYTRACE_AGENT_ROW_LIMIT":             "500",
		"QUERYTRACE_AI_PROVIDER":                 "Anthropic",
		"QUERYTRACE_AI_BASE_URL":                 "https://llm.example.com",
		"QUERYTRACE_AI_MODEL":                    "claude-sonnet-4-5",
		"QUERYTRACE_AI_TEMPERATURE":              "0.2",
		"QUERYTRACE_AI_MAX_OUTPUT_TOKENS":        "2048",
		"QUERYTRACE_AI_TIMEOUT":                  "21s",
		"ANTHROPIC_API_KEY":                      "anthropic-key",
		"QUERYTRACE_OBJECTSTORE_BUCKET":          "datasets",
		"QUERYTRACE_SEED_MACHINE_ROWS":           "100",
		"QUERYTRACE_SEED_RANDOM_SEED":            "7",
		"QUERYTRACE_SEED_CSV_TABLE":              "crops",
		"QUERYTRACE_CORS_ALLOWED_ORIGINS":        "https://a.example, https://b.example",
		"QUERYTRACE_LOG_LEVEL":                   "error",
		"QUERYTRACE_LOG_JSON":                    "true",
		"QUERYTRACE_AUTH_REQUIRED":               "true",
		"QUERYTRACE_AUTH_STATIC_KEYS":            "k1:analyst:query_reader",
	})
	cfg, err := Load("querytrace-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "querytrace-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Database.URL != "postgresql://u:p@db:5432/mines" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 42 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.SchemaSampleRows != 0 {
		t.Fatalf("Database.SchemaSampleRows = %d", cfg.Database.SchemaSampleRows)
	}
	if got := cfg.Database.Tables(); !reflect.DeepEqual(got, []string{"Machines", "crop_production"}) {
		t.Fatalf("Database.Tables() = %#v", got)
	}
	if cfg.Database.SchemaCacheTTL != 30*time.Second {
		t.Fatalf("Database.SchemaCacheTTL = %s", cfg.Database.SchemaCacheTTL)
	}
	if cfg.Agent.MaxIterations != 4 || cfg.Agent.RunTimeout != 9*time.Second || cfg.Agent.TopK != 3 {
		t.Fatalf("Agent = %+v", cfg.Agent)
	}
	if !cfg.Agent.AllowWrites || cfg.Agent.RowLimit != 500 {
		t.Fatalf("Agent = %+v", cfg.Agent)
	}
	if cfg.AI.Provider != ProviderAnthropic {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "anthropic-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.BaseURL != "https://llm.example.com" || cfg.AI.Model != "claude-sonnet-4-5" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.Temperature != 0.2 || cfg.AI.MaxOutputTokens != 2048 || cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.ObjectStore.Bucket != "datasets" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Seed.MachineRows != 100 || cfg.Seed.RandomSeed != 7 || cfg.Seed.CSVTable != "crops" {
		t.Fatalf("Seed = %+v", cfg.Seed)
	}
	if got := cfg.CORS.Origins(); !reflect.DeepEqual(got, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("CORS.Origins() = %#v", got)
	}
	if cfg.Observability.LogLevel != slog.LevelError || !cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:analyst:query_reader" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadAPIKeyPrecedence(t *testing.T) {
	cfg, err := Load("querytrace-api", mapLookup(map[string]string{
		"OPENAI_API_KEY":        "fallback",
		"QUERYTRACE_AI_API_KEY": "explicit",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}

	cfg, err = Load("querytrace-api", mapLookup(map[string]string{"OPENAI_API_KEY": "fallback"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "fallback" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"QUERYTRACE_PROFILE": "oops"},
		{"QUERYTRACE_HTTP_READ_TIMEOUT": "NaN"},
		{"QUERYTRACE_DATABASE_MAX_OPEN_CONNS": "oops"},
		{"QUERYTRACE_DATABASE_URL": ""},
		{"QUERYTRACE_DATABASE_SCHEMA_SAMPLE_ROWS": "-1"},
		{"QUERYTRACE_AGENT_MAX_ITERATIONS": "0"},
		{"QUERYTRACE_AGENT_RUN_TIMEOUT": "0s"},
		{"QUERYTRACE_AI_PROVIDER": "llama"},
		{"QUERYTRACE_AI_TEMPERATURE": "bad"},
		{"QUERYTRACE_SEED_RANDOM_SEED": "x"},
		{"QUERYTRACE_AUTH_REQUIRED": "not-bool"},
		{"QUERYTRACE_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		if _, err := Load("querytrace-api", mapLookup(env)); err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
