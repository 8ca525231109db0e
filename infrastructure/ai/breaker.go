package ai

import (
	"context"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the analyzer circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerAnalyzer guards an analyzer with a circuit breaker. Transient
// errors count as failures; other errors pass through without tripping it.
// While the breaker is open, calls fail immediately with gobreaker.ErrOpenState.
type BreakerAnalyzer struct {
	next ports.Analyzer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerAnalyzer wraps next
func NewBreakerAnalyzer(next ports.Analyzer, cfg BreakerConfig, logger *zap.Logger) *BreakerAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-" + next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		// Only provider-side failures count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerAnalyzer{next: next, cb: cb}
}

// Name implements ports.Analyzer
func (b *BreakerAnalyzer) Name() string { return b.next.Name() }

// State reports the breaker state
func (b *BreakerAnalyzer) State() gobreaker.State { return b.cb.State() }

// AnalyzeEvent implements ports.Analyzer
func (b *BreakerAnalyzer) AnalyzeEvent(ctx context.Context, event entities.EventSnapshot) (*entities.AnalysisResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.AnalyzeEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return out.(*entities.AnalysisResult), nil
}
