package middleware

import (
	"net/http"
	"strings"
	"time"

	"signalwatcher/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Correlation assigns every request a correlation id, taken from the
// X-Correlation-Id header when present, and a request-scoped logger
func Correlation(logger *zap.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(common.CorrelationHeader))
			if id == "" {
				id = uuid.NewString()
			}

			reqLogger := logger.With(zap.String("correlationId", id))

			ctx := common.WithCorrelationID(r.Context(), id)
			ctx = common.WithStartTime(ctx, time.Now())
			ctx = common.WithLogger(ctx, reqLogger)

			w.Header().Set(common.CorrelationHeader, id)

			reqLogger.Debug("Request started",
				zap.String("method", r.Method),
				zap.String("url", r.URL.RequestURI()),
				zap.String("userAgent", r.UserAgent()),
				zap.String("ip", clientIP(r)),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
