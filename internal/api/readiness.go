package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/querytrace/querytrace/internal/config"
)

type ReadinessCheck func(ctx context.Context) error

const defaultDependencyTimeout = 2 * time.Second

func handleReady(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Readiness != nil {
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = defaultDependencyTimeout
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// PingCheck reports readiness from a database ping.
func PingCheck(pinger interface {
	PingContext(ctx context.Context) error
}) ReadinessCheck {
	return func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("database is not configured")
		}
		if err := pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	}
}

// CheckAIConfig fails while no completion service key is configured.
func CheckAIConfig(cfg config.Config) ReadinessCheck {
	return func(context.Context) error {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("%s completion service api key is not configured", cfg.AI.Provider)
		}
		return nil
	}
}

// CombineReadinessChecks runs checks in order and stops at the first failure.
func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	var active []ReadinessCheck
	for _, check := range checks {
		if check != nil {
			active = append(active, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range active {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
