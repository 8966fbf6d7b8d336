package api

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/querytrace/querytrace/internal/config"
)

// CORSMiddleware allows browser clients from the configured origins.
func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
