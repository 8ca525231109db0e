package events

import (
	"time"

	"signalwatcher/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregateId"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event types, also used as message subject suffixes
const (
	TypeEventSimulated = "event.simulated"
	TypeEventAnalyzed  = "event.analyzed"
)

// EventSimulated is raised when an event is ingested through the simulate endpoint
type EventSimulated struct {
	BaseEvent
	Title    string                `json:"title"`
	Severity valueobjects.Severity `json:"severity"`
}

// NewEventSimulated creates an EventSimulated event
func NewEventSimulated(eventID, title string, severity valueobjects.Severity, timestamp time.Time) EventSimulated {
	return EventSimulated{
		BaseEvent: BaseEvent{
			AggregateID: eventID,
			EventType:   TypeEventSimulated,
			Timestamp:   timestamp,
			Version:     1,
		},
		Title:    title,
		Severity: severity,
	}
}

// EventAnalyzed is raised after an analysis has been stored
type EventAnalyzed struct {
	BaseEvent
	AnalysisID string                `json:"analysisId"`
	Severity   valueobjects.Severity `json:"severity"`
	Provider   string                `json:"provider"`
	Fallback   bool                  `json:"fallback"`
}

// NewEventAnalyzed creates an EventAnalyzed event
func NewEventAnalyzed(eventID, analysisID string, severity valueobjects.Severity, provider string, fallback bool, timestamp time.Time) EventAnalyzed {
	return EventAnalyzed{
		BaseEvent: BaseEvent{
			AggregateID: eventID,
			EventType:   TypeEventAnalyzed,
			Timestamp:   timestamp,
			Version:     1,
		},
		AnalysisID: analysisID,
		Severity:   severity,
		Provider:   provider,
		Fallback:   fallback,
	}
}
