package services

import (
	"context"
	"fmt"

	"signalwatcher/application/ports"
	"signalwatcher/domain/config"
	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
	"signalwatcher/domain/events"
	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// SimulateEventInput is the payload of a simulated event
type SimulateEventInput struct {
	Title       string
	Description string
	Severity    valueobjects.Severity
}

// EventService ingests events and serves their analyses
type EventService struct {
	events    ports.EventRepository
	analyses  ports.AnalysisRepository
	scheduler ports.AnalysisScheduler
	publisher ports.EventPublisher
	config    *config.DomainConfig
	logger    *zap.Logger
	metrics   *observability.Registry
}

// NewEventService creates a new event service. scheduler and publisher may be nil.
func NewEventService(
	eventRepo ports.EventRepository,
	analysisRepo ports.AnalysisRepository,
	scheduler ports.AnalysisScheduler,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Registry,
) *EventService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		events:    eventRepo,
		analyses:  analysisRepo,
		scheduler: scheduler,
		publisher: publisher,
		config:    cfg,
		logger:    logger.Named("events"),
		metrics:   metrics,
	}
}

// List returns every event, newest first, with its analyses
func (s *EventService) List(ctx context.Context) ([]*entities.Event, error) {
	return s.events.List(ctx)
}

// Simulate stores a new event and queues its analysis. The caller gets the
// event back before the analysis starts.
func (s *EventService) Simulate(ctx context.Context, input SimulateEventInput) (*entities.Event, error) {
	event, err := entities.NewEventWithConfig(input.Title, input.Description, input.Severity, s.config)
	if err != nil {
		return nil, err
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to save event: %w", err)
	}

	logger := common.LoggerFrom(ctx, s.logger)
	if s.metrics != nil {
		s.metrics.Increment(observability.EventsSimulated, 1, observability.Labels{"severity": event.Severity.String()})
	}
	logger.Info("Event simulated",
		zap.String("eventId", event.ID),
		zap.String("severity", event.Severity.String()),
	)

	if s.publisher != nil {
		notice := events.NewEventSimulated(event.ID, event.Title, event.Severity, event.CreatedAt)
		if err := s.publisher.Publish(ctx, notice); err != nil {
			logger.Warn("Failed to publish event notification", zap.String("eventId", event.ID), zap.Error(err))
		}
	}

	if s.scheduler != nil && !s.scheduler.Dispatch(ctx, event.ID) {
		logger.Warn("Background analysis not scheduled", zap.String("eventId", event.ID))
	}

	return event, nil
}

// Analyses returns the stored analyses of an event, newest first, each with
// the event attached. An unknown event yields an empty list.
func (s *EventService) Analyses(ctx context.Context, eventID string) ([]*entities.Analysis, error) {
	return s.analyses.ListByEvent(ctx, eventID)
}
