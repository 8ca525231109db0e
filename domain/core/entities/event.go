package entities

import (
	"sort"
	"time"

	"signalwatcher/domain/config"
	"signalwatcher/domain/core/valueobjects"

	"github.com/google/uuid"
)

// Event is an observed or simulated signal. It is immutable once created.
type Event struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Severity    valueobjects.Severity `json:"severity"`
	CreatedAt   time.Time             `json:"createdAt"`
	Analyses    []Analysis            `json:"analyses"`
}

// EventSnapshot is the read-only view of an event handed to analyzers
type EventSnapshot struct {
	ID          string
	Title       string
	Description string
	Severity    valueobjects.Severity
}

// NewEvent creates an event with no analyses
func NewEvent(title, description string, severity valueobjects.Severity) (*Event, error) {
	return NewEventWithConfig(title, description, severity, config.DefaultDomainConfig())
}

// NewEventWithConfig creates an event validated against cfg
func NewEventWithConfig(title, description string, severity valueobjects.Severity, cfg *config.DomainConfig) (*Event, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title, err := checkLength("title", title, cfg.MaxEventTitleLength)
	if err != nil {
		return nil, err
	}
	description, err = checkLength("description", description, cfg.MaxEventDescriptionLength)
	if err != nil {
		return nil, err
	}
	if _, err := valueobjects.ParseSeverity(string(severity)); err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   time.Now().UTC(),
		Analyses:    []Analysis{},
	}, nil
}

// Snapshot returns the fields an analyzer may read
func (e *Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Severity:    e.Severity,
	}
}

// SortAnalyses orders analyses newest first
func (e *Event) SortAnalyses() {
	SortAnalysesNewestFirst(e.Analyses)
}

// SortAnalysesNewestFirst orders analyses by CreatedAt, descending
func SortAnalysesNewestFirst(analyses []Analysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt)
	})
}
