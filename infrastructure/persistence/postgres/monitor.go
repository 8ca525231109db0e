package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// MonitorStatus is the outcome of the last health check
type MonitorStatus struct {
	IsConnected     bool       `json:"isConnected"`
	LastHealthCheck *time.Time `json:"lastHealthCheck"`
}

// DatabaseMonitor pings the database on an interval and publishes the
// result as metrics
type DatabaseMonitor struct {
	db       ports.HealthChecker
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Registry

	mu     sync.RWMutex
	status MonitorStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDatabaseMonitor creates a monitor. Start begins the checks.
func NewDatabaseMonitor(db ports.HealthChecker, interval time.Duration, logger *zap.Logger, metrics *observability.Registry) *DatabaseMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseMonitor{
		db:       db,
		interval: interval,
		logger:   logger.With(zap.String("component", "db_monitor")),
		metrics:  metrics,
	}
}

// Start runs one check immediately and then one per interval until Stop
func (m *DatabaseMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.Check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop ends the periodic checks and waits for the loop to exit
func (m *DatabaseMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Check performs a single health check
func (m *DatabaseMonitor) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := m.db.Ping(ctx)
	duration := time.Since(start)
	now := time.Now().UTC()

	m.mu.Lock()
	m.status = MonitorStatus{IsConnected: err == nil, LastHealthCheck: &now}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Database health check failed", zap.Error(err), zap.Time("timestamp", now))
		if m.metrics != nil {
			m.metrics.Gauge(observability.DBConnectionsActive, 0, nil)
			m.metrics.Increment(observability.DBHealthCheckFailuresTotal, 1, nil)
		}
		return
	}

	m.logger.Debug("Database health check passed",
		zap.String("duration", fmt.Sprintf("%dms", duration.Milliseconds())),
		zap.Time("timestamp", now),
	)
	if m.metrics != nil {
		m.metrics.Gauge(observability.DBConnectionsActive, 1, nil)
		m.metrics.Timing(observability.DBHealthCheck, float64(duration.Milliseconds()), nil)
	}
}

// Status returns the result of the last check
func (m *DatabaseMonitor) Status() MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
