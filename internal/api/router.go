// Package api exposes the query, mapping and data-source operations over
// HTTP. Each operation runs the same handler the matching Zeebe worker uses.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"es-query-studio/internal/common/config"
	"es-query-studio/internal/common/logger"
	"es-query-studio/internal/common/metrics"
	"es-query-studio/internal/store"
	loadoracledata "es-query-studio/internal/workers/datasource/load-oracle-data"
	testconnection "es-query-studio/internal/workers/datasource/test-connection"
	applymapping "es-query-studio/internal/workers/mapping/apply-mapping"
	generatemapping "es-query-studio/internal/workers/mapping/generate-mapping"
	validatemapping "es-query-studio/internal/workers/mapping/validate-mapping"
	compilequery "es-query-studio/internal/workers/query/compile-query"
	executesearch "es-query-studio/internal/workers/query/execute-search"
	"es-query-studio/pkg/registry"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Store    store.ConfigStore
	Registry *registry.ActivityRegistry

	Compile    *compilequery.Handler
	Search     *executesearch.Handler
	Generate   *generatemapping.Handler
	Apply      *applymapping.Handler
	Validate   *validatemapping.Handler
	Connection *testconnection.Handler
	Load       *loadoracledata.Handler

	// Ready reports whether the store is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// EnvironmentDeleted is called after an environment is removed so cached
	// clients can be dropped.
	EnvironmentDeleted func(id string)
}

type API struct {
	deps    Deps
	app     config.AppConfig
	timeout time.Duration
	logger  logger.Logger
}

func New(deps Deps, app config.AppConfig, log logger.Logger) *API {
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	return &API{
		deps:    deps,
		app:     app,
		timeout: 30 * time.Second,
		logger:  log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Router builds the chi router with the standard middleware stack.
func (a *API) Router(server config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limitBodySize(server.MaxBodyBytes))
	if len(server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(a.observe)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"})
	})

	r.Get("/health", a.health)
	r.Get("/ready", a.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/activities", a.listActivities)

		r.Route("/environments", func(r chi.Router) {
			r.Post("/", a.createEnvironment)
			r.Get("/", a.listEnvironments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getEnvironment)
				r.Delete("/", a.deleteEnvironment)
				r.Get("/mappings", a.listMappings)
				r.Put("/indices/{index}/config", a.putIndexConfig)
				r.Get("/indices/{index}/config", a.getIndexConfig)
			})
		})

		r.Post("/query/compile", operation(a, compilequery.TaskType, a.deps.Compile.Execute))
		r.Post("/query/search", operation(a, executesearch.TaskType, a.deps.Search.Execute))
		r.Post("/mappings/generate", operation(a, generatemapping.TaskType, a.deps.Generate.Execute))
		r.Post("/mappings/apply", operation(a, applymapping.TaskType, a.deps.Apply.Execute))
		r.Post("/mappings/validate", operation(a, validatemapping.TaskType, a.deps.Validate.Execute))
		r.Post("/connections/test", operation(a, testconnection.TaskType, a.deps.Connection.Execute))
		r.Post("/data/load", operation(a, loadoracledata.TaskType, a.deps.Load.Execute))
	})

	return r
}

// observe counts requests by route pattern and logs each one.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()

		a.logger.Info("http request", map[string]interface{}{
			"method":    r.Method,
			"route":     route,
			"status":    status,
			"bytes":     ww.BytesWritten(),
			"latencyMs": time.Since(start).Milliseconds(),
			"requestId": chimw.GetReqID(r.Context()),
		})
	})
}

func limitBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": a.app.Name,
		"version": a.app.Version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

func (a *API) listActivities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Registry)
}
