package ports

import (
	"context"

	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/events"
)

// WatchlistRepository defines the interface for watchlist persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type WatchlistRepository interface {
	// List returns every watchlist with its terms, newest first
	List(ctx context.Context) ([]*entities.Watchlist, error)

	// GetByID returns the watchlist with terms ordered by value, or a NotFound AppError
	GetByID(ctx context.Context, id string) (*entities.Watchlist, error)

	// Save inserts a new watchlist
	Save(ctx context.Context, watchlist *entities.Watchlist) error

	// Update writes name, description and updatedAt of an existing watchlist
	Update(ctx context.Context, watchlist *entities.Watchlist) error

	// Delete removes the watchlist and its terms
	Delete(ctx context.Context, id string) error

	// AddTerm stores a term. A duplicate value in the same watchlist is a Conflict.
	AddTerm(ctx context.Context, term entities.WatchlistTerm) error

	// DeleteTerm removes the term when it belongs to watchlistID, else NotFound
	DeleteTerm(ctx context.Context, watchlistID, termID string) error
}

// EventRepository defines the interface for event persistence
type EventRepository interface {
	// List returns every event with analyses (newest first), events newest first
	List(ctx context.Context) ([]*entities.Event, error)

	// GetByID returns the event without its analyses, or a NotFound AppError
	GetByID(ctx context.Context, id string) (*entities.Event, error)

	// Save inserts a new event
	Save(ctx context.Context, event *entities.Event) error
}

// AnalysisRepository defines the interface for analysis persistence
type AnalysisRepository interface {
	// Save appends an analysis. The parent event must exist.
	Save(ctx context.Context, analysis *entities.Analysis) error

	// ListByEvent returns the analyses of an event, newest first
	ListByEvent(ctx context.Context, eventID string) ([]*entities.Analysis, error)
}

// HealthChecker is implemented by backends that can be pinged
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Analyzer produces an analysis for one event
type Analyzer interface {
	Name() string
	AnalyzeEvent(ctx context.Context, event entities.EventSnapshot) (*entities.AnalysisResult, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends an event. Delivery is best effort.
	Publish(ctx context.Context, event events.DomainEvent) error

	// Close flushes and releases the connection
	Close() error
}

// AnalysisScheduler queues background analysis of an event
type AnalysisScheduler interface {
	// Dispatch never blocks. It reports false when the job was dropped.
	Dispatch(ctx context.Context, eventID string) bool
}
