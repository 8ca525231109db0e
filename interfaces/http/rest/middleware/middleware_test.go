package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signalwatcher/infrastructure/cache"
	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"
	"signalwatcher/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// clockStore is an in-memory cache.Store with a controllable clock
type clockStore struct {
	mu      sync.Mutex
	now     time.Time
	items   map[string]clockItem
	failGet bool
}

type clockItem struct {
	value     []byte
	expiresAt time.Time
}

func newClockStore() *clockStore {
	return &clockStore{now: time.Unix(1_700_000_000, 0), items: map[string]clockItem{}}
}

func (s *clockStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("connection refused")
	}
	item, ok := s.items[key]
	if !ok || !s.now.Before(item.expiresAt) {
		return nil, cache.ErrCacheMiss
	}
	return item.value, nil
}

func (s *clockStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = clockItem{value: append([]byte(nil), value...), expiresAt: s.now.Add(ttl)}
	return nil
}

func (s *clockStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *clockStore) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

func TestCorrelation(t *testing.T) {
	var seen string
	h := Correlation(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.GetCorrelationID(r.Context())
		_, hasStart := common.GetStartTime(r.Context())
		assert.True(t, hasStart)
	}))

	t.Run("Should echo an incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(common.CorrelationHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(common.CorrelationHeader))
	})

	t.Run("Should generate an id when the header is blank", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(common.CorrelationHeader, "   ")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(common.CorrelationHeader))
	})
}

func TestCache(t *testing.T) {
	calls := 0
	status := http.StatusOK
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		common.RespondJSON(w, status, map[string]int{"calls": calls})
	})

	t.Run("Should serve an identical body on a hit and skip the handler", func(t *testing.T) {
		calls, status = 0, http.StatusOK
		store := newClockStore()
		metrics := observability.NewRegistry(nil)
		h := Cache(store, 30*time.Second, zap.NewNop(), metrics)(handler)

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/watchlists", nil))
		assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

		second := httptest.NewRecorder()
		h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/watchlists", nil))
		assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
		assert.Equal(t, 1, calls)

		hits, _ := metrics.Get(observability.CacheHitsTotal, observability.Labels{"route": "/api/watchlists"})
		assert.Equal(t, 1.0, hits.Count)
	})

	t.Run("Should miss again after the ttl", func(t *testing.T) {
		calls, status = 0, http.StatusOK
		store := newClockStore()
		h := Cache(store, 15*time.Second, nil, nil)(handler)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events", nil))
		store.advance(16 * time.Second)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Equal(t, 2, calls)
	})

	t.Run("Should key on the query string", func(t *testing.T) {
		calls, status = 0, http.StatusOK
		h := Cache(newClockStore(), time.Minute, nil, nil)(handler)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events?a=1", nil))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/events?a=2", nil))
		assert.Equal(t, 2, calls)
	})

	t.Run("Should neither store nor tag non-200 responses", func(t *testing.T) {
		calls, status = 0, http.StatusNotFound
		store := newClockStore()
		h := Cache(store, time.Minute, nil, nil)(handler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlists/x", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
		assert.Empty(t, store.items)
	})

	t.Run("Should pass through when the store fails", func(t *testing.T) {
		calls, status = 0, http.StatusOK
		store := newClockStore()
		store.failGet = true
		h := Cache(store, time.Minute, nil, nil)(handler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, calls)
	})

	t.Run("Should do nothing without a store", func(t *testing.T) {
		calls, status = 0, http.StatusOK
		h := Cache(nil, time.Minute, nil, nil)(handler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	})
}

type createBody struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
}

type reportBody struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=1000"`
	Severity    string `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
}

type idParams struct {
	ID string `param:"id" validate:"required,resourceid"`
}

type listQuery struct {
	Limit  int    `query:"limit" default:"20" validate:"min=1,max=100"`
	Status string `query:"status" default:"open" validate:"oneof=open closed"`
}

func newValidatedRouter(t *testing.T, schema Schema, inspect func(r *http.Request)) http.Handler {
	t.Helper()
	errHandler := pkgerrors.NewErrorHandler(zap.NewNop(), nil, false)
	r := chi.NewRouter()
	r.With(Validate(schema, errHandler)).Post("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		inspect(r)
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestValidate(t *testing.T) {
	const validID = "550e8400-e29b-41d4-a716-446655440000"
	schema := Schema{
		Body:   func() any { return &createBody{} },
		Params: func() any { return &idParams{} },
		Query:  func() any { return &listQuery{} },
	}

	t.Run("Should hand typed values with defaults to the handler", func(t *testing.T) {
		var body *createBody
		var query *listQuery
		h := newValidatedRouter(t, schema, func(r *http.Request) {
			body = Body[createBody](r)
			query = Query[listQuery](r)
			assert.Equal(t, validID, Params[idParams](r).ID)
		})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/"+validID, strings.NewReader(`{"name":"Ops"}`)))

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "Ops", body.Name)
		assert.Nil(t, body.Description)
		assert.Equal(t, 20, query.Limit)
		assert.Equal(t, "open", query.Status)
	})

	t.Run("Should collect issues from every section", func(t *testing.T) {
		h := newValidatedRouter(t, schema, func(*http.Request) { t.Fatal("handler must not run") })

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/NOT-AN-ID?limit=500", strings.NewReader(`{"name":""}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ValidationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Validation error", resp.Message)

		paths := make([]string, 0, len(resp.Issues))
		for _, issue := range resp.Issues {
			paths = append(paths, strings.Join(issue.Path, "."))
		}
		assert.ElementsMatch(t, []string{"body.name", "params.id", "query.limit"}, paths)
	})

	t.Run("Should report a field of the wrong type as an issue", func(t *testing.T) {
		h := newValidatedRouter(t, schema, func(*http.Request) {})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/"+validID, strings.NewReader(`{"name":42}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_type")
	})

	t.Run("Should report wrong types alongside every other violation", func(t *testing.T) {
		bodySchema := Schema{Body: func() any { return &reportBody{} }}
		cases := []struct {
			body string
			want []string
		}{
			{`{"title":5,"severity":"BOGUS"}`, []string{"invalid_type body.title", "required body.description", "oneof body.severity"}},
			{`{"title":5,"description":true,"severity":"BOGUS"}`, []string{"invalid_type body.title", "invalid_type body.description", "oneof body.severity"}},
			{`{"title":"ok","description":"d","severity":3}`, []string{"invalid_type body.severity"}},
		}

		for _, tc := range cases {
			h := newValidatedRouter(t, bodySchema, func(*http.Request) { t.Fatal("handler must not run") })

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/x", strings.NewReader(tc.body)))

			require.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
			var resp ValidationResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			got := make([]string, 0, len(resp.Issues))
			for _, issue := range resp.Issues {
				got = append(got, issue.Code+" "+strings.Join(issue.Path, "."))
			}
			assert.ElementsMatch(t, tc.want, got, tc.body)
		}
	})

	t.Run("Should report a malformed query value once", func(t *testing.T) {
		h := newValidatedRouter(t, schema, func(*http.Request) { t.Fatal("handler must not run") })

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/"+validID+"?limit=abc&status=maybe", strings.NewReader(`{"name":"Ops"}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ValidationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		got := make([]string, 0, len(resp.Issues))
		for _, issue := range resp.Issues {
			got = append(got, issue.Code+" "+strings.Join(issue.Path, "."))
		}
		assert.ElementsMatch(t, []string{"invalid_type query.limit", "oneof query.status"}, got)
	})

	t.Run("Should send malformed JSON to the error handler", func(t *testing.T) {
		h := newValidatedRouter(t, schema, func(*http.Request) {})

		for _, body := range []string{`{"name":`, `["Ops"]`, `"Ops"`} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/"+validID, strings.NewReader(body)))

			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			var resp pkgerrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, pkgerrors.CodeInvalidJSON, resp.Code)
		}
	})

	t.Run("Should report required fields for an empty body", func(t *testing.T) {
		h := newValidatedRouter(t, Schema{Body: func() any { return &createBody{} }}, func(*http.Request) {})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/x", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"required"`)
	})

	t.Run("Should accept its own output", func(t *testing.T) {
		var first *createBody
		h := newValidatedRouter(t, Schema{Body: func() any { return &createBody{} }}, func(r *http.Request) {
			first = Body[createBody](r)
		})
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/x", strings.NewReader(`{"name":"Ops","description":"d"}`)))
		require.NotNil(t, first)

		again, err := json.Marshal(first)
		require.NoError(t, err)

		var second *createBody
		h = newValidatedRouter(t, Schema{Body: func() any { return &createBody{} }}, func(r *http.Request) {
			second = Body[createBody](r)
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/x", strings.NewReader(string(again))))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, first, second)
	})
}

type erroringLimiter struct{ ratelimit.RateLimiter }

func (erroringLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	errHandler := pkgerrors.NewErrorHandler(zap.NewNop(), nil, true)

	t.Run("Should reject with 429 once the budget is spent", func(t *testing.T) {
		metrics := observability.NewRegistry(nil)
		h := RateLimit(ratelimit.NewSlidingWindowLimiter(2, time.Minute), errHandler, zap.NewNop(), metrics)(ok)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
			codes = append(codes, rec.Code)
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		}
		assert.Equal(t, []int{200, 200, 429}, codes)

		rejected, _ := metrics.Get(observability.RateLimitRejectionsTotal, observability.Labels{"route": "/api/events"})
		assert.Equal(t, 1.0, rejected.Count)
	})

	t.Run("Should fail open on limiter errors", func(t *testing.T) {
		limiter := erroringLimiter{ratelimit.NewSlidingWindowLimiter(1, time.Minute)}
		h := RateLimit(limiter, errHandler, zap.NewNop(), nil)(ok)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAdminAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	errHandler := pkgerrors.NewErrorHandler(zap.NewNop(), nil, true)

	serve := func(h http.Handler, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/metrics/reset", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("Should allow everything outside production without a secret", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(AdminAuth("", false, errHandler, nil)(ok), ""))
	})

	t.Run("Should require a header in production", func(t *testing.T) {
		h := AdminAuth("", true, errHandler, nil)(ok)
		assert.Equal(t, http.StatusUnauthorized, serve(h, ""))
		assert.Equal(t, http.StatusOK, serve(h, "Bearer anything"))
	})

	t.Run("Should verify the token when a secret is set", func(t *testing.T) {
		h := AdminAuth("s3cret", false, errHandler, zap.NewNop())(ok)

		assert.Equal(t, http.StatusOK, serve(h, "Bearer "+signToken(t, "s3cret", time.Now().Add(time.Hour))))
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+signToken(t, "other", time.Now().Add(time.Hour))))
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+signToken(t, "s3cret", time.Now().Add(-time.Hour))))
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer not-a-jwt"))
	})

	t.Run("Should classify token failures", func(t *testing.T) {
		_, err := ValidateAdminToken("Bearer "+signToken(t, "s3cret", time.Now().Add(-time.Hour)), "s3cret")
		assert.ErrorIs(t, err, ErrExpiredToken)

		_, err = ValidateAdminToken("Bearer ", "s3cret")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestLogger(t *testing.T) {
	metrics := observability.NewRegistry(nil)
	r := chi.NewRouter()
	r.Use(Logger(zap.NewNop(), metrics))
	r.Get("/api/watchlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		common.RespondJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/watchlists/abc", nil))

	requests, ok := metrics.Get(observability.HTTPRequestsTotal, observability.Labels{
		"method": "GET", "route": "/api/watchlists/{id}", "status": "200",
	})
	require.True(t, ok)
	assert.Equal(t, 1.0, requests.Count)

	size, ok := metrics.Get(observability.HTTPResponseSize, observability.Labels{"method": "GET", "route": "/api/watchlists/{id}"})
	require.True(t, ok)
	assert.Greater(t, size.Sum, 0.0)
}
