package ai

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
)

// MockProviderName identifies the mock analyzer in logs and metrics
const MockProviderName = "mock"

var (
	mockSummaries = []string{
		"This event indicates a potential system issue that requires monitoring.",
		"A security-related incident has been detected that needs immediate attention.",
		"Performance degradation observed in critical system components.",
		"Service availability is impacted and requires investigation.",
	}
	mockActions = []string{
		"Monitor the situation and check system logs for additional context.",
		"Investigate the root cause and implement temporary mitigation measures.",
		"Escalate to the on-call engineer and prepare incident response procedures.",
		"Activate emergency response protocol and notify all stakeholders immediately.",
	}
)

// MockAnalyzer returns a canned analysis after a simulated processing delay.
// It never fails: a cancelled context only cuts the delay short.
type MockAnalyzer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

// MockOption configures a MockAnalyzer
type MockOption func(*MockAnalyzer)

// WithRand sets the random source used for the delay and the picks
func WithRand(rng *rand.Rand) MockOption {
	return func(m *MockAnalyzer) { m.rng = rng }
}

// WithDelay sets the range of the simulated delay
func WithDelay(min, max time.Duration) MockOption {
	return func(m *MockAnalyzer) {
		if max < min {
			max = min
		}
		m.minDelay, m.maxDelay = min, max
	}
}

// NewMockAnalyzer creates the mock analyzer. The default delay is 500ms to 1500ms.
func NewMockAnalyzer(opts ...MockOption) *MockAnalyzer {
	m := &MockAnalyzer{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		minDelay: 500 * time.Millisecond,
		maxDelay: 1500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements ports.Analyzer
func (m *MockAnalyzer) Name() string { return MockProviderName }

// AnalyzeEvent implements ports.Analyzer
func (m *MockAnalyzer) AnalyzeEvent(ctx context.Context, event entities.EventSnapshot) (*entities.AnalysisResult, error) {
	m.mu.Lock()
	delay := m.minDelay
	if spread := m.maxDelay - m.minDelay; spread > 0 {
		delay += time.Duration(m.rng.Int63n(int64(spread)))
	}
	summary := mockSummaries[m.rng.Intn(len(mockSummaries))]
	severity := valueobjects.Severities[m.rng.Intn(len(valueobjects.Severities))]
	action := mockActions[m.rng.Intn(len(mockActions))]
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	return &entities.AnalysisResult{
		Summary:  summary,
		Severity: severity,
		Action:   action,
	}, nil
}
