package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Logger creates a logging middleware that also records the request metrics
func Logger(logger *zap.Logger, metrics *observability.Registry) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if s, ok := common.GetStartTime(r.Context()); ok {
				start = s
			}

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			route := routePattern(r)

			common.LoggerFrom(r.Context(), logger).Info("Request completed",
				zap.String("method", r.Method),
				zap.String("url", r.URL.RequestURI()),
				zap.String("route", route),
				zap.Int("statusCode", status),
				zap.Int("contentLength", ww.BytesWritten()),
				zap.String("duration", strconv.FormatInt(duration.Milliseconds(), 10)+"ms"),
				zap.String("ip", clientIP(r)),
				zap.String("userAgent", r.UserAgent()),
			)

			if metrics == nil {
				return
			}
			metrics.Increment(observability.HTTPRequestsTotal, 1, observability.Labels{
				"method": r.Method,
				"route":  route,
				"status": strconv.Itoa(status),
			})
			metrics.Timing(observability.HTTPRequestTiming, float64(duration.Milliseconds()), observability.Labels{
				"method": r.Method,
				"route":  route,
			})
			metrics.Gauge(observability.HTTPResponseSize, float64(ww.BytesWritten()), observability.Labels{
				"method": r.Method,
				"route":  route,
			})
		})
	}
}

// routePattern returns the matched chi pattern, or the raw path when no
// route matched
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// clientIP returns the remote host without port. chi's RealIP middleware
// has already replaced RemoteAddr with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
