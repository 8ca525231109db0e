package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/domain/events"
	"signalwatcher/pkg/observability"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// DefaultSubjectPrefix is prepended to the event type to form the subject
	DefaultSubjectPrefix = "signalwatcher"

	ConnectTimeout       = 10 * time.Second
	ReconnectWait        = 5 * time.Second
	MaxReconnectAttempts = 10
	publishTimeout       = 5 * time.Second
)

// Publisher sends domain events to NATS as JSON messages on
// <prefix>.<event type>
type Publisher struct {
	mu      sync.RWMutex
	conn    *nats.Conn
	prefix  string
	logger  *zap.Logger
	metrics *observability.Registry
}

// NewPublisher connects to url and returns a publisher
func NewPublisher(url, subjectPrefix string, logger *zap.Logger, metrics *observability.Registry) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "nats"))

	conn, err := nats.Connect(url,
		nats.Name("signal-watcher-api"),
		nats.Timeout(ConnectTimeout),
		nats.ReconnectWait(ReconnectWait),
		nats.MaxReconnects(MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("NATS publisher initialized", zap.String("url", url), zap.String("prefix", subjectPrefix))
	return newPublisher(conn, subjectPrefix, logger, metrics), nil
}

func newPublisher(conn *nats.Conn, subjectPrefix string, logger *zap.Logger, metrics *observability.Registry) *Publisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &Publisher{
		conn:    conn,
		prefix:  strings.TrimSuffix(subjectPrefix, "."),
		logger:  logger,
		metrics: metrics,
	}
}

// Subject returns the subject an event of eventType is published on
func (p *Publisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish implements ports.EventPublisher
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	subject := p.Subject(event.GetEventType())
	if conn == nil || conn.IsClosed() {
		p.recordError(subject)
		return fmt.Errorf("NATS publisher not connected")
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.recordError(subject)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("x-event-type", event.GetEventType())
	msg.Header.Set("x-aggregate-id", event.GetAggregateID())
	msg.Header.Set("x-timestamp", strconv.FormatInt(event.GetTimestamp().UnixMilli(), 10))

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		p.recordError(subject)
		return fmt.Errorf("publish timeout: %w", ctx.Err())
	default:
	}

	if err := conn.PublishMsg(msg); err != nil {
		p.recordError(subject)
		p.logger.Error("Failed to publish event",
			zap.String("subject", subject),
			zap.String("aggregateId", event.GetAggregateID()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.Increment(observability.MessagesPublished, 1, observability.Labels{"subject": subject})
	}
	p.logger.Debug("Event published",
		zap.String("subject", subject),
		zap.String("aggregateId", event.GetAggregateID()),
	)
	return nil
}

// IsReady reports whether the connection is up
func (p *Publisher) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	if err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

func (p *Publisher) recordError(subject string) {
	if p.metrics != nil {
		p.metrics.Increment(observability.MessagePublishErrors, 1, observability.Labels{"subject": subject})
	}
}

// NoopPublisher discards events. It is used when no NATS_URL is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a publisher that only logs at debug
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

// Publish implements ports.EventPublisher
func (n *NoopPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	n.logger.Debug("Event discarded, no broker configured",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateId", event.GetAggregateID()),
	)
	return nil
}

// Close implements ports.EventPublisher
func (n *NoopPublisher) Close() error { return nil }

var (
	_ ports.EventPublisher = (*Publisher)(nil)
	_ ports.EventPublisher = (*NoopPublisher)(nil)
)
