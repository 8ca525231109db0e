package middleware

import (
	"net/http"
	"strconv"

	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"
	"signalwatcher/pkg/ratelimit"

	"go.uber.org/zap"
)

// RateLimit rejects clients that exceed the limiter's budget. Limiter errors
// let the request through.
func RateLimit(limiter ratelimit.RateLimiter, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger, metrics *observability.Registry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		limit := strconv.Itoa(limiter.Limit())

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", limit)

			key := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				common.LoggerFrom(r.Context(), logger).Warn("Rate limiter unavailable, allowing request",
					zap.String("ip", key),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if metrics != nil {
					metrics.Increment(observability.RateLimitRejectionsTotal, 1, observability.Labels{"route": r.URL.Path})
				}
				errHandler.Handle(w, r, pkgerrors.NewRateLimitError(limiter.Limit(), limiter.Window().String()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
