package rest

import (
	"net/http"
	"time"

	"signalwatcher/infrastructure/cache"
	"signalwatcher/interfaces/http/rest/handlers"
	"signalwatcher/interfaces/http/rest/middleware"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"
	"signalwatcher/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Cache lifetimes per route
const (
	WatchlistsTTL = 30 * time.Second
	WatchlistTTL  = 30 * time.Second
	EventsTTL     = 15 * time.Second
	AnalysisTTL   = 30 * time.Second
)

// RouterOptions carries the settings the router needs from configuration
type RouterOptions struct {
	AllowedOrigins []string
	AdminSecret    string
	Production     bool
	Prometheus     http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	watchlists *handlers.WatchlistHandler
	events     *handlers.EventHandler
	health     *handlers.HealthHandler
	metricsAPI *handlers.MetricsHandler

	errors  *pkgerrors.ErrorHandler
	limiter ratelimit.RateLimiter
	cache   cache.Store
	tracer  *observability.Tracer
	metrics *observability.Registry
	logger  *zap.Logger
	opts    RouterOptions
}

// NewRouter creates a new router instance
func NewRouter(
	watchlists *handlers.WatchlistHandler,
	events *handlers.EventHandler,
	health *handlers.HealthHandler,
	metricsAPI *handlers.MetricsHandler,
	errHandler *pkgerrors.ErrorHandler,
	limiter ratelimit.RateLimiter,
	store cache.Store,
	tracer *observability.Tracer,
	metrics *observability.Registry,
	logger *zap.Logger,
	opts RouterOptions,
) *Router {
	if tracer == nil {
		tracer = observability.NoopTracer("signal-watcher-api")
	}
	return &Router{
		watchlists: watchlists,
		events:     events,
		health:     health,
		metricsAPI: metricsAPI,
		errors:     errHandler,
		limiter:    limiter,
		cache:      store,
		tracer:     tracer,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Correlation(rt.logger))
	router.Use(middleware.Tracing(rt.tracer))
	router.Use(middleware.Logger(rt.logger, rt.metrics))
	router.Use(rt.errors.Middleware)

	origins := rt.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-Id"},
		ExposedHeaders: []string{"X-Correlation-Id", "X-Cache", "X-RateLimit-Limit"},
		MaxAge:         300,
	}))
	router.Use(middleware.RateLimit(rt.limiter, rt.errors, rt.logger, rt.metrics))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.Handle(w, r, pkgerrors.NewNotFoundError("Route"))
	})

	router.Get("/", handlers.Root)
	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)
	if rt.opts.Prometheus != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Prometheus)
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/watchlists", rt.watchlistRoutes)
		r.Route("/events", rt.eventRoutes)
		r.Route("/metrics", rt.metricsRoutes)
	})

	return router
}

func (rt *Router) watchlistRoutes(r chi.Router) {
	h := rt.watchlists
	id := middleware.Validate(middleware.Schema{Params: handlers.NewIDParams}, rt.errors)

	r.With(rt.cached(WatchlistsTTL)).Get("/", h.List)
	r.With(middleware.Validate(middleware.Schema{Body: handlers.NewCreateWatchlistRequest}, rt.errors)).
		Post("/", h.Create)

	r.With(id, rt.cached(WatchlistTTL)).Get("/{id}", h.Get)
	r.With(middleware.Validate(middleware.Schema{
		Params: handlers.NewIDParams,
		Body:   handlers.NewUpdateWatchlistRequest,
	}, rt.errors)).Put("/{id}", h.Update)
	r.With(id).Delete("/{id}", h.Delete)

	r.With(middleware.Validate(middleware.Schema{
		Params: handlers.NewIDParams,
		Body:   handlers.NewAddTermRequest,
	}, rt.errors)).Post("/{id}/terms", h.AddTerm)
	r.With(middleware.Validate(middleware.Schema{Params: handlers.NewTermParams}, rt.errors)).
		Delete("/{id}/terms/{termId}", h.DeleteTerm)
}

func (rt *Router) eventRoutes(r chi.Router) {
	h := rt.events
	id := middleware.Validate(middleware.Schema{Params: handlers.NewIDParams}, rt.errors)

	r.With(rt.cached(EventsTTL)).Get("/", h.List)
	r.With(middleware.Validate(middleware.Schema{Body: handlers.NewSimulateEventRequest}, rt.errors)).
		Post("/simulate", h.Simulate)
	r.With(id, rt.cached(AnalysisTTL)).Get("/{id}/analysis", h.Analyses)
	r.With(id).Post("/{id}/analyze", h.Analyze)
}

func (rt *Router) metricsRoutes(r chi.Router) {
	h := rt.metricsAPI

	r.Get("/", h.All)
	r.Get("/summary", h.Summary)
	r.Get("/health", h.Health)
	r.With(middleware.AdminAuth(rt.opts.AdminSecret, rt.opts.Production, rt.errors, rt.logger)).
		Post("/reset", h.Reset)
}

func (rt *Router) cached(ttl time.Duration) func(http.Handler) http.Handler {
	return middleware.Cache(rt.cache, ttl, rt.logger, rt.metrics)
}
