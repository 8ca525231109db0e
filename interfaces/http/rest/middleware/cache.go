package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"signalwatcher/infrastructure/cache"
	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// CacheKey is the store key of a request
func CacheKey(r *http.Request) string {
	return "cache:" + r.Method + ":" + r.URL.RequestURI()
}

// Cache serves stored 200 responses for ttl. With a nil store it does nothing.
func Cache(store cache.Store, ttl time.Duration, logger *zap.Logger, metrics *observability.Registry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := CacheKey(r)
			log := common.LoggerFrom(r.Context(), logger)
			route := routePattern(r)

			cached, err := store.Get(r.Context(), key)
			switch {
			case err == nil:
				if metrics != nil {
					metrics.Increment(observability.CacheHitsTotal, 1, observability.Labels{"route": route})
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			case !errors.Is(err, cache.ErrCacheMiss):
				log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
			}

			if metrics != nil {
				metrics.Increment(observability.CacheMissesTotal, 1, observability.Labels{"route": route})
			}

			cw := &cachingWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status != http.StatusOK || cw.body.Len() == 0 {
				return
			}
			// the request may already be finished; the write must not be cut short
			ctx := context.WithoutCancel(r.Context())
			if err := store.Set(ctx, key, cw.body.Bytes(), ttl); err != nil {
				log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

// cachingWriter tees 200 bodies into a buffer and tags them X-Cache: MISS
type cachingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *cachingWriter) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = code
	if code == http.StatusOK {
		c.Header().Set("X-Cache", "MISS")
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *cachingWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.status == http.StatusOK {
		c.body.Write(b)
	}
	return c.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (c *cachingWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}
