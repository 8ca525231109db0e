package entities

import (
	"time"

	"signalwatcher/domain/core/valueobjects"

	"github.com/google/uuid"
)

// AnalysisResult is what an analyzer returns for one event
type AnalysisResult struct {
	Summary  string                `json:"summary"`
	Severity valueobjects.Severity `json:"severity"`
	Action   string                `json:"action"`
}

// Analysis is a stored AI analysis. Analyses are append-only and always
// belong to an existing event.
type Analysis struct {
	ID        string                `json:"id"`
	EventID   string                `json:"eventId"`
	Summary   string                `json:"summary"`
	Severity  valueobjects.Severity `json:"severity"`
	Action    string                `json:"action"`
	CreatedAt time.Time             `json:"createdAt"`

	// Event is filled in by queries that join the parent event
	Event *Event `json:"event,omitempty"`
}

// NewAnalysis records result against eventID
func NewAnalysis(eventID string, result AnalysisResult) *Analysis {
	return &Analysis{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Summary:   result.Summary,
		Severity:  result.Severity,
		Action:    result.Action,
		CreatedAt: time.Now().UTC(),
	}
}
