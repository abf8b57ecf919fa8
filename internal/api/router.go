package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/aiox-platform/companion/internal/middleware"
)

// readinessTimeout bounds each dependency ping.
const readinessTimeout = 2 * time.Second

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Thread handlers
	PostMessage http.HandlerFunc
	GetThread   http.HandlerFunc
	ListTurns   http.HandlerFunc

	// Memory handlers
	ListMemories   http.HandlerFunc
	SearchMemories http.HandlerFunc

	GetArtifact http.HandlerFunc
	GetActivity http.HandlerFunc
}

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	MessageRateLimiter func(http.Handler) http.Handler
	ReadinessChecks    []ReadinessCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, check := range cfg.ReadinessChecks {
			if check.Pinger == nil {
				health[check.Name] = "not configured"
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			err := check.Pinger.Ping(ctx)
			cancel()
			if err != nil {
				health[check.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[check.Name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/threads/{threadID}", func(r chi.Router) {
			r.Get("/", h.GetThread)
			r.Get("/turns", optional(h.ListTurns))

			r.Group(func(r chi.Router) {
				if cfg.MessageRateLimiter != nil {
					r.Use(cfg.MessageRateLimiter)
				}
				r.Post("/messages", h.PostMessage)
			})

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", optional(h.ListMemories))
				r.Post("/search", optional(h.SearchMemories))
			})
		})

		r.Get("/artifacts/{name}", h.GetArtifact)
		r.Get("/activity", h.GetActivity)
	})

	return r
}

// optional answers 404 for features disabled in this deployment.
func optional(fn http.HandlerFunc) http.HandlerFunc {
	if fn != nil {
		return fn
	}
	return func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, NewNotFoundError("feature not enabled"))
	}
}
