package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Agent         AgentConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Seed          SeedConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxIdleTime  time.Duration
	ConnMaxLifetime  time.Duration
	SchemaSampleRows int
	SchemaTables     string
	SchemaCacheTTL   time.Duration
}

type AgentConfig struct {
	MaxIterations int
	RunTimeout    time.Duration
	TopK          int
	AllowWrites   bool
	RowLimit      int
}

type AIConfig struct {
	Provider        string
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type SeedConfig struct {
	MachineRows int
	RandomSeed  int64
	CSVTable    string
}

type CORSConfig struct {
	AllowedOrigins string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYTRACE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYTRACE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "QUERYTRACE_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "QUERYTRACE_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "QUERYTRACE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "QUERYTRACE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "QUERYTRACE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },

		func() error { return applyString(lookup, "QUERYTRACE_DATABASE_URL", &cfg.Database.URL) },
		func() error {
			return applyInt(lookup, "QUERYTRACE_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
		},
		func() error {
			return applyInt(lookup, "QUERYTRACE_DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
		},
		func() error {
			return applyDuration(lookup, "QUERYTRACE_DATABASE_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "QUERYTRACE_DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error {
			return applyInt(lookup, "QUERYTRACE_DATABASE_SCHEMA_SAMPLE_ROWS", &cfg.Database.SchemaSampleRows)
		},
		func() error {
			return applyString(lookup, "QUERYTRACE_DATABASE_SCHEMA_TABLES", &cfg.Database.SchemaTables)
		},
		func() error {
			return applyDuration(lookup, "QUERYTRACE_DATABASE_SCHEMA_CACHE_TTL", &cfg.Database.SchemaCacheTTL)
		},

		func() error { return applyInt(lookup, "QUERYTRACE_AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations) },
		func() error { return applyDuration(lookup, "QUERYTRACE_AGENT_RUN_TIMEOUT", &cfg.Agent.RunTimeout) },
		func() error { return applyInt(lookup, "QUERYTRACE_AGENT_TOP_K", &cfg.Agent.TopK) },
		func() error { return applyBool(lookup, "QUERYTRACE_AGENT_ALLOW_WRITES", &cfg.Agent.AllowWrites) },
		func() error { return applyInt(lookup, "QUERYTRACE_AGENT_ROW_LIMIT", &cfg.Agent.RowLimit) },

		func() error { return applyString(lookup, "QUERYTRACE_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "QUERYTRACE_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyAPIKey(lookup, &cfg.AI) },
		func() error { return applyString(lookup, "QUERYTRACE_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "QUERYTRACE_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyInt(lookup, "QUERYTRACE_AI_MAX_OUTPUT_TOKENS", &cfg.AI.MaxOutputTokens) },
		func() error { return applyDuration(lookup, "QUERYTRACE_AI_TIMEOUT", &cfg.AI.Timeout) },

		func() error { return applyString(lookup, "QUERYTRACE_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "QUERYTRACE_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "QUERYTRACE_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "QUERYTRACE_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "QUERYTRACE_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "QUERYTRACE_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "QUERYTRACE_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "QUERYTRACE_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},

		func() error { return applyInt(lookup, "QUERYTRACE_SEED_MACHINE_ROWS", &cfg.Seed.MachineRows) },
		func() error { return applyInt64(lookup, "QUERYTRACE_SEED_RANDOM_SEED", &cfg.Seed.RandomSeed) },
		func() error { return applyString(lookup, "QUERYTRACE_SEED_CSV_TABLE", &cfg.Seed.CSVTable) },

		func() error { return applyString(lookup, "QUERYTRACE_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },

		func() error { return applyBool(lookup, "QUERYTRACE_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "QUERYTRACE_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "QUERYTRACE_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "QUERYTRACE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("database url is required")
	}
	if cfg.Agent.MaxIterations <= 0 {
		return Config{}, fmt.Errorf("QUERYTRACE_AGENT_MAX_ITERATIONS must be > 0")
	}
	if cfg.Agent.RunTimeout <= 0 {
		return Config{}, fmt.Errorf("QUERYTRACE_AGENT_RUN_TIMEOUT must be > 0")
	}
	if cfg.Database.SchemaSampleRows < 0 {
		return Config{}, fmt.Errorf("QUERYTRACE_DATABASE_SCHEMA_SAMPLE_ROWS must be >= 0")
	}
	switch cfg.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return Config{}, fmt.Errorf("invalid QUERYTRACE_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querytrace-api"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 180 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			URL:              "sqlite:///mining_machines.db",
			MaxOpenConns:     10,
			MaxIdleConns:     10,
			ConnMaxIdleTime:  5 * time.Minute,
			ConnMaxLifetime:  30 * time.Minute,
			SchemaSampleRows: 3,
		},
		Agent: AgentConfig{
			MaxIterations: 15,
			RunTimeout:    120 * time.Second,
			TopK:          10,
			AllowWrites:   false,
			RowLimit:      0,
		},
		AI: AIConfig{
			Provider:        ProviderOpenAI,
			BaseURL:         "https://api.openai.com",
			Model:           "gpt-4",
			Temperature:     0,
			MaxOutputTokens: 1024,
			Timeout:         60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querytrace",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Seed: SeedConfig{
			MachineRows: 4000,
			RandomSeed:  42,
			CSVTable:    "crop_production",
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Database.URL = "sqlite://"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

// Origins splits the comma-separated CORS origin list.
func (c CORSConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Tables splits the comma-separated schema table include list.
func (c DatabaseConfig) Tables() []string {
	if strings.TrimSpace(c.SchemaTables) == "" {
		return nil
	}
	parts := strings.Split(c.SchemaTables, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

// applyAPIKey prefers QUERYTRACE_AI_API_KEY and falls back to the provider's
// conventional variable.
func applyAPIKey(lookup LookupFunc, dst *AIConfig) error {
	if err := applyString(lookup, "QUERYTRACE_AI_API_KEY", &dst.APIKey); err != nil {
		return err
	}
	if dst.APIKey != "" {
		return nil
	}
	fallback := "OPENAI_API_KEY"
	if strings.EqualFold(dst.Provider, ProviderAnthropic) {
		fallback = "ANTHROPIC_API_KEY"
	}
	return applyString(lookup, fallback, &dst.APIKey)
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
