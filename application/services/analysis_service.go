package services

import (
	"context"
	"fmt"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/domain/config"
	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/events"
	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AnalysisOptions tune the orchestrator
type AnalysisOptions struct {
	// PrimaryTimeout bounds the single call to the primary analyzer
	PrimaryTimeout time.Duration
}

// AnalysisService runs the primary analyzer, falls back to the secondary one
// on any failure and stores exactly one analysis per call
type AnalysisService struct {
	events    ports.EventRepository
	analyses  ports.AnalysisRepository
	primary   ports.Analyzer
	fallback  ports.Analyzer
	publisher ports.EventPublisher
	options   AnalysisOptions
	config    *config.DomainConfig
	logger    *zap.Logger
	metrics   *observability.Registry
	tracer    *observability.Tracer
}

// NewAnalysisService creates the orchestrator. When primary and fallback are
// the same analyzer no fallback takes place.
func NewAnalysisService(
	eventRepo ports.EventRepository,
	analysisRepo ports.AnalysisRepository,
	primary ports.Analyzer,
	fallback ports.Analyzer,
	publisher ports.EventPublisher,
	options AnalysisOptions,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Registry,
	tracer *observability.Tracer,
) *AnalysisService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NoopTracer("signal-watcher-api")
	}
	if options.PrimaryTimeout <= 0 {
		options.PrimaryTimeout = 10 * time.Second
	}
	if fallback == primary {
		fallback = nil
	}
	return &AnalysisService{
		events:    eventRepo,
		analyses:  analysisRepo,
		primary:   primary,
		fallback:  fallback,
		publisher: publisher,
		options:   options,
		config:    cfg,
		logger:    logger.Named("analysis"),
		metrics:   metrics,
		tracer:    tracer,
	}
}

// AnalyzeEvent analyzes one event. The stored summary carries the fallback
// notice when the fallback produced it; the returned result never does.
func (s *AnalysisService) AnalyzeEvent(ctx context.Context, eventID string) (*entities.AnalysisResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, "analysis.analyze_event", attribute.String("event.id", eventID))
	defer span.End()

	logger := common.LoggerFrom(ctx, s.logger).With(zap.String("eventId", eventID))

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	snapshot := event.Snapshot()

	provider := s.primary.Name()
	result, err := s.attempt(ctx, s.primary, snapshot, s.options.PrimaryTimeout)
	usedFallback := false
	if err != nil {
		if s.fallback == nil {
			logger.Error("AI analysis failed", zap.String("provider", provider), zap.Error(err))
			observability.RecordError(span, err)
			return nil, pkgerrors.NewExternalError(provider, err)
		}

		logger.Warn("Primary AI adapter failed, falling back",
			zap.String("provider", provider),
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.Increment(observability.AIFallbacksTotal, 1, observability.Labels{"provider": provider})
		}

		provider = s.fallback.Name()
		usedFallback = true
		result, err = s.attempt(ctx, s.fallback, snapshot, 0)
		if err != nil {
			logger.Error("Fallback AI adapter failed", zap.String("provider", provider), zap.Error(err))
			observability.RecordError(span, err)
			return nil, pkgerrors.NewExternalError(provider, err)
		}
	}
	span.SetAttributes(
		attribute.String("ai.provider", provider),
		attribute.Bool("ai.fallback", usedFallback),
		attribute.String("ai.severity", result.Severity.String()),
	)

	stored := *result
	if usedFallback {
		stored.Summary += s.config.FallbackNotice
	}
	analysis := entities.NewAnalysis(event.ID, stored)

	if err := s.persist(ctx, analysis); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	logger.Info("AI analysis stored",
		zap.String("analysisId", analysis.ID),
		zap.String("provider", provider),
		zap.Bool("fallback", usedFallback),
		zap.String("severity", analysis.Severity.String()),
	)

	if s.publisher != nil {
		notice := events.NewEventAnalyzed(event.ID, analysis.ID, analysis.Severity, provider, usedFallback, analysis.CreatedAt)
		if err := s.publisher.Publish(context.WithoutCancel(ctx), notice); err != nil {
			logger.Warn("Failed to publish analysis notification", zap.Error(err))
		}
	}

	out := *result
	return &out, nil
}

// attempt makes one call to analyzer, bounded by timeout when positive
func (s *AnalysisService) attempt(ctx context.Context, analyzer ports.Analyzer, event entities.EventSnapshot, timeout time.Duration) (*entities.AnalysisResult, error) {
	name := analyzer.Name()
	ctx, span := s.tracer.StartSpan(ctx, "analysis.provider", attribute.String("ai.provider", name))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := analyzer.AnalyzeEvent(ctx, event)
	if err == nil && result == nil {
		err = fmt.Errorf("analyzer %s returned no result", name)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		observability.RecordError(span, err)
	}
	if s.metrics != nil {
		s.metrics.Increment(observability.AIRequestsTotal, 1, observability.Labels{"provider": name, "outcome": outcome})
		s.metrics.Timing(observability.AIRequestTiming, float64(time.Since(start).Milliseconds()), observability.Labels{"provider": name})
	}
	return result, err
}

// persist stores the analysis on a context that ignores the caller's
// cancellation and is bounded by AnalysisPersistTime
func (s *AnalysisService) persist(ctx context.Context, analysis *entities.Analysis) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AnalysisPersistTime)
	defer cancel()

	if err := s.analyses.Save(ctx, analysis); err != nil {
		if pkgerrors.GetAppError(err) != nil {
			return err
		}
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}
