package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/application/services"
	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
	"signalwatcher/infrastructure/ai"
	"signalwatcher/infrastructure/cache"
	"signalwatcher/infrastructure/persistence/memory"
	"signalwatcher/interfaces/http/rest/handlers"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"
	"signalwatcher/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type appOptions struct {
	store      cache.Store
	primary    ports.Analyzer
	db         ports.HealthChecker
	limiter    ratelimit.RateLimiter
	production bool
	prometheus bool
}

type testApp struct {
	handler    http.Handler
	metrics    *observability.Registry
	store      *memory.Store
	dispatcher *services.AnalysisDispatcher
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewRegistry(logger)
	store := memory.NewStore()

	fallback := ai.NewMockAnalyzer(ai.WithDelay(0, 0))
	primary := opts.primary
	if primary == nil {
		primary = fallback
	}

	analysis := services.NewAnalysisService(store.Events(), store.Analyses(), primary, fallback, nil,
		services.AnalysisOptions{PrimaryTimeout: time.Second}, nil, logger, metrics, nil)
	dispatcher := services.NewAnalysisDispatcher(analysis, 2, 10, logger, metrics)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	errHandler := pkgerrors.NewErrorHandler(logger, metrics, opts.production)
	watchlists := services.NewWatchlistService(store.Watchlists(), nil, logger, metrics)
	events := services.NewEventService(store.Events(), store.Analyses(), dispatcher, nil, nil, logger, metrics)

	routerOpts := RouterOptions{Production: opts.production}
	if opts.prometheus {
		routerOpts.Prometheus = observability.PrometheusHandler(
			observability.NewPrometheusRegistry(observability.NewPrometheusBridge(metrics, "signalwatcher")))
	}

	router := NewRouter(
		handlers.NewWatchlistHandler(watchlists, errHandler, logger),
		handlers.NewEventHandler(events, analysis, errHandler, logger),
		handlers.NewHealthHandler(nil, opts.db, logger),
		handlers.NewMetricsHandler(metrics, "test", logger),
		errHandler,
		opts.limiter,
		opts.store,
		nil,
		metrics,
		logger,
		routerOpts,
	)

	return &testApp{handler: router.Setup(), metrics: metrics, store: store, dispatcher: dispatcher}
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type gatedAnalyzer struct {
	release chan struct{}
	once    sync.Once
}

func (g *gatedAnalyzer) Name() string { return "gated" }

func (g *gatedAnalyzer) AnalyzeEvent(ctx context.Context, _ entities.EventSnapshot) (*entities.AnalysisResult, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &entities.AnalysisResult{Summary: "gated", Severity: valueobjects.SeverityLow, Action: "none"}, nil
}

func (g *gatedAnalyzer) open() { g.once.Do(func() { close(g.release) }) }

func TestRouterBasics(t *testing.T) {
	app := newTestApp(t, appOptions{})

	t.Run("Should answer the root route", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Signal Watcher API"}`, rec.Body.String())
	})

	t.Run("Should set the correlation header on every response", func(t *testing.T) {
		for _, tc := range []struct {
			method, path string
			body         any
		}{
			{http.MethodGet, "/", nil},
			{http.MethodGet, "/health", nil},
			{http.MethodGet, "/api/watchlists", nil},
			{http.MethodGet, "/api/watchlists/not-an-id", nil},
			{http.MethodPost, "/api/watchlists", map[string]any{}},
			{http.MethodGet, "/api/nothing-here", nil},
		} {
			rec := app.do(t, tc.method, tc.path, tc.body)
			assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"), tc.path)
		}
	})

	t.Run("Should echo a caller supplied correlation id", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/", nil, "X-Correlation-Id", "abc-123")
		assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-Id"))
	})

	t.Run("Should answer unknown routes with a 404 error body", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/nothing-here", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeInto[pkgerrors.ErrorResponse](t, rec)
		assert.Equal(t, rec.Header().Get("X-Correlation-Id"), body.CorrelationID)
	})
}

func TestWatchlistRoutes(t *testing.T) {
	t.Run("Should run the watchlist and term lifecycle", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodPost, "/api/watchlists", map[string]any{"name": "Infra", "description": "core systems"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decodeInto[entities.Watchlist](t, rec)
		assert.Equal(t, "Infra", created.Name)
		assert.Empty(t, created.Terms)

		rec = app.do(t, http.MethodPost, "/api/watchlists/"+created.ID+"/terms", map[string]any{"term": "outage"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		term := decodeInto[entities.WatchlistTerm](t, rec)
		assert.Equal(t, created.ID, term.WatchlistID)

		rec = app.do(t, http.MethodPost, "/api/watchlists/"+created.ID+"/terms", map[string]any{"term": "outage"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = app.do(t, http.MethodGet, "/api/watchlists/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		fetched := decodeInto[entities.Watchlist](t, rec)
		require.Len(t, fetched.Terms, 1)
		assert.Equal(t, "outage", fetched.Terms[0].Term)

		rec = app.do(t, http.MethodDelete, "/api/watchlists/"+created.ID+"/terms/"+term.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(t, http.MethodPut, "/api/watchlists/"+created.ID, map[string]any{"name": "Infra v2"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Infra v2", decodeInto[entities.Watchlist](t, rec).Name)

		rec = app.do(t, http.MethodDelete, "/api/watchlists/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(t, http.MethodGet, "/api/watchlists/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.do(t, http.MethodDelete, "/api/watchlists/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should reject invalid bodies and ids with validation issues", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodPost, "/api/watchlists", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeInto[map[string]any](t, rec)
		assert.Equal(t, "Validation error", body["message"])
		assert.NotEmpty(t, body["issues"])

		rec = app.do(t, http.MethodGet, "/api/watchlists/not-an-id", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.do(t, http.MethodPut, "/api/watchlists/not-an-id", map[string]any{"name": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		issues := decodeInto[map[string]any](t, rec)["issues"].([]any)
		assert.GreaterOrEqual(t, len(issues), 2)
	})

	t.Run("Should not delete a term through another watchlist", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		a := decodeInto[entities.Watchlist](t, app.do(t, http.MethodPost, "/api/watchlists", map[string]any{"name": "A"}))
		b := decodeInto[entities.Watchlist](t, app.do(t, http.MethodPost, "/api/watchlists", map[string]any{"name": "B"}))
		term := decodeInto[entities.WatchlistTerm](t, app.do(t, http.MethodPost, "/api/watchlists/"+a.ID+"/terms", map[string]any{"term": "breach"}))

		rec := app.do(t, http.MethodDelete, "/api/watchlists/"+b.ID+"/terms/"+term.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCachedRoutes(t *testing.T) {
	t.Run("Should serve the second read from cache byte for byte", func(t *testing.T) {
		store, err := cache.NewLRUStore(100)
		require.NoError(t, err)
		app := newTestApp(t, appOptions{store: store})

		app.do(t, http.MethodPost, "/api/watchlists", map[string]any{"name": "Cached"})

		first := app.do(t, http.MethodGet, "/api/watchlists", nil)
		second := app.do(t, http.MethodGet, "/api/watchlists", nil)

		assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
		assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())

		var hits float64
		for _, data := range app.metrics.All() {
			if data.Name() == observability.CacheHitsTotal {
				hits += data.Count
			}
		}
		assert.Equal(t, float64(1), hits)
	})

	t.Run("Should not cache validation failures", func(t *testing.T) {
		store, err := cache.NewLRUStore(100)
		require.NoError(t, err)
		app := newTestApp(t, appOptions{store: store})

		app.do(t, http.MethodGet, "/api/watchlists/bad", nil)
		rec := app.do(t, http.MethodGet, "/api/watchlists/bad", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	})
}

func TestEventRoutes(t *testing.T) {
	t.Run("Should eventually attach an analysis to a simulated event", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodPost, "/api/events/simulate", map[string]any{
			"title":       "Disk full",
			"description": "Node 3 is out of space",
			"severity":    "HIGH",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		event := decodeInto[entities.Event](t, rec)
		assert.Equal(t, valueobjects.SeverityHigh, event.Severity)

		require.Eventually(t, func() bool {
			rec := app.do(t, http.MethodGet, "/api/events/"+event.ID+"/analysis", nil)
			var analyses []entities.Analysis
			return rec.Code == http.StatusOK &&
				json.Unmarshal(rec.Body.Bytes(), &analyses) == nil &&
				len(analyses) == 1
		}, 2*time.Second, 20*time.Millisecond)

		rec = app.do(t, http.MethodGet, "/api/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		events := decodeInto[[]entities.Event](t, rec)
		require.Len(t, events, 1)
		assert.Len(t, events[0].Analyses, 1)
	})

	t.Run("Should answer simulate before the background analysis completes", func(t *testing.T) {
		gate := &gatedAnalyzer{release: make(chan struct{})}
		app := newTestApp(t, appOptions{primary: gate})
		defer gate.open()

		rec := app.do(t, http.MethodPost, "/api/events/simulate", map[string]any{
			"title":       "Latency spike",
			"description": "p99 above 2s",
			"severity":    "MEDIUM",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		event := decodeInto[entities.Event](t, rec)

		analyses, err := app.store.Analyses().ListByEvent(context.Background(), event.ID)
		require.NoError(t, err)
		assert.Empty(t, analyses)

		gate.open()
		require.Eventually(t, func() bool {
			analyses, err := app.store.Analyses().ListByEvent(context.Background(), event.ID)
			return err == nil && len(analyses) == 1
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("Should reject an unknown severity", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodPost, "/api/events/simulate", map[string]any{
			"title":       "x",
			"description": "y",
			"severity":    "SEVERE",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should analyze synchronously and return the bare result", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		event := decodeInto[entities.Event](t, app.do(t, http.MethodPost, "/api/events/simulate", map[string]any{
			"title":       "Login burst",
			"description": "Many failed logins",
			"severity":    "CRITICAL",
		}))

		rec := app.do(t, http.MethodPost, "/api/events/"+event.ID+"/analyze", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		result := decodeInto[map[string]any](t, rec)
		assert.NotEmpty(t, result["summary"])
		assert.NotEmpty(t, result["severity"])
		assert.NotEmpty(t, result["action"])
		assert.Len(t, result, 3)
	})

	t.Run("Should answer 404 when analyzing an unknown event", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodPost, "/api/events/550e8400-e29b-41d4-a716-446655440099/analyze", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should return an empty list for an event without analyses", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodGet, "/api/events/550e8400-e29b-41d4-a716-446655440099/analysis", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestHealthRoutes(t *testing.T) {
	t.Run("Should report unknown dependencies as healthy", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeInto[handlers.HealthResponse](t, rec)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "unknown", body.Checks["db"])
		assert.Equal(t, "unknown", body.Checks["redis"])
		assert.Regexp(t, `^\d+ms$`, body.Duration)
	})

	t.Run("Should report a failing database as down", func(t *testing.T) {
		app := newTestApp(t, appOptions{db: pingFunc(func(context.Context) error { return errors.New("refused") })})

		rec := app.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "down", decodeInto[handlers.HealthResponse](t, rec).Status)

		rec = app.do(t, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Should bound a hanging ping", func(t *testing.T) {
		app := newTestApp(t, appOptions{db: pingFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})})

		start := time.Now()
		rec := app.do(t, http.MethodGet, "/health", nil)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, "down", decodeInto[handlers.HealthResponse](t, rec).Checks["db"])
	})
}

func TestMetricsRoutes(t *testing.T) {
	t.Run("Should expose recorded request metrics", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.do(t, http.MethodGet, "/", nil)

		rec := app.do(t, http.MethodGet, "/api/metrics/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeInto[struct {
			Success bool                  `json:"success"`
			Data    observability.Summary `json:"data"`
		}](t, rec)
		assert.True(t, body.Success)
		assert.Positive(t, body.Data.TotalMetrics)
	})

	t.Run("Should report metrics health", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodGet, "/api/metrics/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeInto[struct {
			Data handlers.MetricsHealth `json:"data"`
		}](t, rec)
		assert.Equal(t, "healthy", body.Data.Status)
		assert.Equal(t, "test", body.Data.Metrics.Version)
	})

	t.Run("Should reset metrics outside production", func(t *testing.T) {
		app := newTestApp(t, appOptions{})
		app.do(t, http.MethodGet, "/", nil)

		rec := app.do(t, http.MethodPost, "/api/metrics/reset", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeInto[map[string]any](t, rec)
		assert.Equal(t, "Metrics reset successfully", body["message"])
	})

	t.Run("Should require authorization to reset in production", func(t *testing.T) {
		app := newTestApp(t, appOptions{production: true})

		rec := app.do(t, http.MethodPost, "/api/metrics/reset", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = app.do(t, http.MethodPost, "/api/metrics/reset", nil, "Authorization", "Bearer anything")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should serve the prometheus exposition when enabled", func(t *testing.T) {
		app := newTestApp(t, appOptions{prometheus: true})
		app.do(t, http.MethodGet, "/", nil)

		rec := app.do(t, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})

	t.Run("Should not mount prometheus when disabled", func(t *testing.T) {
		app := newTestApp(t, appOptions{})

		rec := app.do(t, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRateLimitedRouter(t *testing.T) {
	t.Run("Should reject requests over the limit with 429", func(t *testing.T) {
		app := newTestApp(t, appOptions{limiter: ratelimit.NewSlidingWindowLimiter(2, time.Minute)})

		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/", nil).Code)
		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/", nil).Code)

		rec := app.do(t, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
	})

	t.Run("Should answer preflight outside the budget and keep CORS headers on 429", func(t *testing.T) {
		app := newTestApp(t, appOptions{limiter: ratelimit.NewSlidingWindowLimiter(1, time.Minute)})
		const origin = "https://dashboard.example.com"

		for i := 0; i < 3; i++ {
			rec := app.do(t, http.MethodOptions, "/api/watchlists", nil,
				"Origin", origin,
				"Access-Control-Request-Method", http.MethodPost,
			)
			assert.Less(t, rec.Code, http.StatusBadRequest)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		}

		assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/", nil, "Origin", origin).Code)

		rec := app.do(t, http.MethodGet, "/", nil, "Origin", origin)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
