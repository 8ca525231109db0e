package services

import (
	"context"
	"fmt"
	"sync"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"
	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// EventAnalyzer is the part of AnalysisService the dispatcher needs
type EventAnalyzer interface {
	AnalyzeEvent(ctx context.Context, eventID string) (*entities.AnalysisResult, error)
}

type analysisJob struct {
	eventID       string
	correlationID string
}

// AnalysisDispatcher runs background analyses on a fixed pool of workers.
// Jobs are never retried; a failed or panicking job is logged and counted.
type AnalysisDispatcher struct {
	analyzer EventAnalyzer
	jobs     chan analysisJob
	logger   *zap.Logger
	metrics  *observability.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAnalysisDispatcher starts workers goroutines reading from a queue of queueSize
func NewAnalysisDispatcher(analyzer EventAnalyzer, workers, queueSize int, logger *zap.Logger, metrics *observability.Registry) *AnalysisDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &AnalysisDispatcher{
		analyzer: analyzer,
		jobs:     make(chan analysisJob, queueSize),
		logger:   logger.Named("dispatcher"),
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch queues an analysis without blocking. A full queue drops the job.
// Only the correlation id of ctx is carried into the job; its cancellation is not.
func (d *AnalysisDispatcher) Dispatch(ctx context.Context, eventID string) bool {
	job := analysisJob{eventID: eventID}
	if id, ok := common.GetCorrelationID(ctx); ok {
		job.correlationID = id
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(job, "dispatcher stopped")
		return false
	}

	select {
	case d.jobs <- job:
		return true
	default:
		d.drop(job, "queue full")
		return false
	}
}

// Shutdown stops intake and waits for queued and running jobs until ctx
// expires, at which point running jobs are cancelled
func (d *AnalysisDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Analysis dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("analysis dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *AnalysisDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

func (d *AnalysisDispatcher) run(job analysisJob) {
	ctx := d.ctx
	if job.correlationID != "" {
		ctx = common.WithCorrelationID(ctx, job.correlationID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.fail(ctx, job.eventID, fmt.Errorf("panic: %v", rec))
		}
	}()

	if _, err := d.analyzer.AnalyzeEvent(ctx, job.eventID); err != nil {
		d.fail(ctx, job.eventID, err)
	}
}

func (d *AnalysisDispatcher) fail(ctx context.Context, eventID string, err error) {
	common.LoggerFrom(ctx, d.logger).Error("AI analysis failed for event", zap.String("eventId", eventID), zap.Error(err))
	if d.metrics != nil {
		d.metrics.Increment(observability.AnalysisJobsFailed, 1, nil)
	}
}

func (d *AnalysisDispatcher) drop(job analysisJob, reason string) {
	logger := d.logger
	if job.correlationID != "" {
		logger = logger.With(zap.String("correlationId", job.correlationID))
	}
	logger.Error("Dropping background analysis", zap.String("eventId", job.eventID), zap.String("reason", reason))
	if d.metrics != nil {
		d.metrics.Increment(observability.AnalysisJobsDropped, 1, nil)
	}
}

var _ ports.AnalysisScheduler = (*AnalysisDispatcher)(nil)
