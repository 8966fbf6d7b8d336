package querytracectl

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// OptionsFromEnv reads QUERYTRACE_API_URL, QUERYTRACE_API_KEY,
// QUERYTRACE_CLI_TIMEOUT and QUERYTRACE_CLI_JSON. Flags still override
// every value it returns.
func OptionsFromEnv(lookup LookupFunc) (Options, error) {
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}

	opts := Options{
		BaseURL: firstNonEmpty(get("QUERYTRACE_API_URL"), "http://localhost:8080"),
		APIKey:  get("QUERYTRACE_API_KEY"),
		Timeout: 3 * time.Minute,
	}
	if raw := get("QUERYTRACE_CLI_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return Options{}, fmt.Errorf("QUERYTRACE_CLI_TIMEOUT must be a positive duration, got %q", raw)
		}
		opts.Timeout = timeout
	}
	if raw := get("QUERYTRACE_CLI_JSON"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Options{}, fmt.Errorf("QUERYTRACE_CLI_JSON must be a boolean, got %q", raw)
		}
		opts.JSON = enabled
	}
	return opts, nil
}
