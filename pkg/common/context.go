package common

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyCorrelationID ContextKey = "correlation_id"
	ContextKeyStartTime     ContextKey = "start_time"
	ContextKeyLogger        ContextKey = "logger"
)

// CorrelationHeader carries the correlation id in both directions
const CorrelationHeader = "X-Correlation-Id"

// WithCorrelationID adds the correlation id to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// GetCorrelationID extracts the correlation id from context
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyCorrelationID).(string)
	return id, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetStartTime extracts start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time)
	return startTime, ok
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := GetStartTime(ctx); ok {
		return time.Since(startTime)
	}
	return 0
}

// WithLogger stores a request-scoped logger
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerFrom returns the request-scoped logger, or fallback when none is set.
// A fallback logger still gets the correlation id attached when one is known.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(ContextKeyLogger).(*zap.Logger); ok && logger != nil {
		return logger
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	if id, ok := GetCorrelationID(ctx); ok {
		return fallback.With(zap.String("correlationId", id))
	}
	return fallback
}

// RequestContext is the correlation context of a single request
type RequestContext struct {
	CorrelationID string        `json:"correlationId,omitempty"`
	StartTime     time.Time     `json:"startTime"`
	Elapsed       time.Duration `json:"elapsed"`
}

// ExtractRequestContext reads the correlation context back out of ctx
func ExtractRequestContext(ctx context.Context) RequestContext {
	rc := RequestContext{}
	if id, ok := GetCorrelationID(ctx); ok {
		rc.CorrelationID = id
	}
	if start, ok := GetStartTime(ctx); ok {
		rc.StartTime = start
	}
	rc.Elapsed = GetElapsedTime(ctx)
	return rc
}
