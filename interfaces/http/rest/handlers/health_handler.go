package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	CheckOK      = "ok"
	CheckDown    = "down"
	CheckUnknown = "unknown"

	pingTimeout = 500 * time.Millisecond
)

// HealthResponse is the body of /health and /ready
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
	Duration  string            `json:"duration"`
}

// HealthHandler reports dependency status. A nil checker means the
// dependency is not configured and reports "unknown".
type HealthHandler struct {
	redis  ports.HealthChecker
	db     ports.HealthChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(redis, db ports.HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{redis: redis, db: db, logger: logger}
}

// Health always answers 200 with the aggregated status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.check(r.Context()))
}

// Ready answers 503 when any configured dependency is down
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := h.check(r.Context())
	status := http.StatusOK
	if resp.Status != CheckOK {
		status = http.StatusServiceUnavailable
	}
	common.RespondJSON(w, status, resp)
}

func (h *HealthHandler) check(ctx context.Context) HealthResponse {
	start := time.Now()

	var redisStatus, dbStatus string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		redisStatus = h.ping(gctx, "redis", h.redis)
		return nil
	})
	g.Go(func() error {
		dbStatus = h.ping(gctx, "db", h.db)
		return nil
	})
	_ = g.Wait()

	status := CheckOK
	if redisStatus == CheckDown || dbStatus == CheckDown {
		status = CheckDown
	}

	return HealthResponse{
		Status:    status,
		Checks:    map[string]string{"redis": redisStatus, "db": dbStatus},
		Timestamp: common.Timestamp(time.Now()),
		Duration:  fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
}

func (h *HealthHandler) ping(ctx context.Context, name string, checker ports.HealthChecker) string {
	if checker == nil {
		return CheckUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := checker.Ping(ctx); err != nil {
		common.LoggerFrom(ctx, h.logger).Warn("Health check failed",
			zap.String("dependency", name),
			zap.Error(err),
		)
		return CheckDown
	}
	return CheckOK
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "Signal Watcher API"})
}
