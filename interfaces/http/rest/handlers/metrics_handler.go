package handlers

import (
	"net/http"
	"runtime"
	"time"

	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// MemoryStats is the subset of runtime.MemStats exposed by /api/metrics/health
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapSys    uint64 `json:"heapSys"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

// MetricsHealth is the data of /api/metrics/health
type MetricsHealth struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Metrics   struct {
		TotalMetrics int         `json:"totalMetrics"`
		Uptime       float64     `json:"uptime"`
		Memory       MemoryStats `json:"memory"`
		Version      string      `json:"version"`
	} `json:"metrics"`
}

// MetricsHandler exposes the in-process metrics registry
type MetricsHandler struct {
	metrics *observability.Registry
	version string
	started time.Time
	logger  *zap.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *observability.Registry, version string, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
}

// All handles GET /api/metrics
func (h *MetricsHandler) All(w http.ResponseWriter, r *http.Request) {
	common.RespondEnvelope(w, http.StatusOK, h.metrics.All())
}

// Summary handles GET /api/metrics/summary
func (h *MetricsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	common.RespondEnvelope(w, http.StatusOK, h.metrics.Summary())
}

// Health handles GET /api/metrics/health
func (h *MetricsHandler) Health(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data := MetricsHealth{
		Status:    "healthy",
		Timestamp: common.Timestamp(time.Now()),
	}
	data.Metrics.TotalMetrics = len(h.metrics.All())
	data.Metrics.Uptime = time.Since(h.started).Seconds()
	data.Metrics.Memory = MemoryStats{
		Alloc:      mem.Alloc,
		HeapAlloc:  mem.HeapAlloc,
		HeapSys:    mem.HeapSys,
		Sys:        mem.Sys,
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	data.Metrics.Version = h.version

	common.RespondEnvelope(w, http.StatusOK, data)
}

// Reset handles POST /api/metrics/reset. Authorization is enforced by
// the AdminAuth middleware mounted in front of it.
func (h *MetricsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.metrics.Reset()
	common.LoggerFrom(r.Context(), h.logger).Info("Metrics reset via API")
	common.RespondMessage(w, http.StatusOK, "Metrics reset successfully")
}
