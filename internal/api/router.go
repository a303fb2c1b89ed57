package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxBodyBytes caps speak request bodies; larger bodies fail JSON decoding.
const maxBodyBytes = 1 << 20

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and metrics from env vars.
type RouterConfig struct {
	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*".
	CorsAllowedOrigins string

	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(Recoverer)
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: parseOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/speak", h.Speak)
	r.Post("/say", h.Speak)

	return r
}

// parseOrigins splits a comma-separated origin list, falling back to "*".
func parseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
