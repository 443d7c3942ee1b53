package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sydlexius/soundalike/internal/api/middleware"
	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/recommend"
)

// Recommender is the engine surface the HTTP layer needs.
type Recommender interface {
	Recommend(ctx context.Context, seedID string) (*recommend.Result, error)
	Search(ctx context.Context, query string) ([]catalog.Track, error)
}

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Engine       Recommender
	Logger       *slog.Logger
	BasePath     string
	RateLimiter  *middleware.IPRateLimiter // nil disables per-IP limiting
	Metrics      http.Handler              // nil leaves /metrics unmounted
	CatalogState func() string             // reported by the health endpoint
}

// Router sets up all HTTP routes for the application.
type Router struct {
	engine       Recommender
	logger       *slog.Logger
	basePath     string
	rateLimiter  *middleware.IPRateLimiter
	metrics      http.Handler
	catalogState func() string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		engine:       deps.Engine,
		logger:       deps.Logger.With(slog.String("component", "api")),
		basePath:     deps.BasePath,
		rateLimiter:  deps.RateLimiter,
		metrics:      deps.Metrics,
		catalogState: deps.CatalogState,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestID(r.logger))
	mux.Use(middleware.Logging(r.logger))
	mux.Use(middleware.Metrics)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.SecurityHeaders)

	routes := func(rt chi.Router) {
		rt.Get("/api/v1/health", r.handleHealth)
		if r.metrics != nil {
			rt.Method(http.MethodGet, "/metrics", r.metrics)
		}

		rt.Group(func(rt chi.Router) {
			if r.rateLimiter != nil {
				rt.Use(r.rateLimiter.Middleware)
			}
			rt.Post("/search", r.handleSearch)
			rt.Post("/recommend", r.handleRecommend)
		})
	}

	if r.basePath == "" {
		routes(mux)
	} else {
		mux.Route(r.basePath, routes)
	}

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return mux
}
