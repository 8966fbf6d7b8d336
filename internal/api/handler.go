package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querytrace/querytrace/internal/config"
	"github.com/querytrace/querytrace/internal/nlquery"
	"github.com/querytrace/querytrace/internal/observability"
)

// QuestionAnswerer runs one natural-language question through the pipeline.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) (nlquery.Response, error)
}

type SchemaSource interface {
	Schema(ctx context.Context) (string, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Answerer          QuestionAnswerer
	Schema            SchemaSource
}

type route struct {
	pattern   string
	protected bool
	handler   http.Handler
}

func routes(cfg config.Config, deps Dependencies) []route {
	query := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handleQuery(deps, w, r) })
	return []route{
		{pattern: "GET /v1/health", handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
		})},
		{pattern: "GET /v1/ready", handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handleReady(deps, w, r) })},
		{pattern: "GET /v1/metrics", handler: promhttp.Handler()},
		{pattern: "POST /query", protected: true, handler: query},
		{pattern: "POST /v1/query", protected: true, handler: query},
		{pattern: "GET /v1/schema", protected: true, handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handleSchema(deps, w, r) })},
	}
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	guard := protection(cfg, deps)
	mux := http.NewServeMux()
	for _, rt := range routes(cfg, deps) {
		if rt.protected {
			mux.Handle(rt.pattern, guard(rt.handler))
			continue
		}
		mux.Handle(rt.pattern, rt.handler)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.Method+" "+r.URL.Path, false, nil)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		CORSMiddleware(cfg.CORS),
		observability.MetricsMiddleware,
		observability.RecoverMiddleware(deps.Logger),
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// protection wraps question and schema routes with authentication when the
// configuration asks for it.
func protection(cfg config.Config, deps Dependencies) func(http.Handler) http.Handler {
	if !cfg.Auth.Required {
		return func(next http.Handler) http.Handler { return next }
	}
	if deps.AuthMiddleware != nil {
		return deps.AuthMiddleware
	}
	if deps.Logger != nil {
		deps.Logger.Error("auth required but auth middleware missing")
	}
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
