package services

import (
	"context"
	"fmt"

	"signalwatcher/application/ports"
	"signalwatcher/domain/config"
	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
	pkgerrors "signalwatcher/pkg/errors"

	"go.uber.org/zap"
)

// DefaultWatchlistID is the fixed id of the seeded watchlist
const DefaultWatchlistID = "550e8400-e29b-41d4-a716-446655440000"

var (
	seedTerms  = []string{"security", "outage", "breach"}
	seedEvents = []SimulateEventInput{
		{Title: "Service outage detected", Description: "An outage in region us-east-1", Severity: valueobjects.SeverityHigh},
		{Title: "Security incident reported", Description: "Suspicious login attempts", Severity: valueobjects.SeverityMedium},
	}
)

// SeedResult lists what Seed created
type SeedResult struct {
	WatchlistID string
	TermsAdded  int
	EventIDs    []string
}

// Seeder loads demo data
type Seeder struct {
	watchlists ports.WatchlistRepository
	events     ports.EventRepository
	config     *config.DomainConfig
	logger     *zap.Logger
}

// NewSeeder creates a seeder
func NewSeeder(watchlists ports.WatchlistRepository, events ports.EventRepository, cfg *config.DomainConfig, logger *zap.Logger) *Seeder {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{watchlists: watchlists, events: events, config: cfg, logger: logger.Named("seed")}
}

// Seed upserts the default watchlist, adds its terms skipping duplicates and
// creates the two demo events. Running it twice adds two more events.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	w, err := s.watchlists.GetByID(ctx, DefaultWatchlistID)
	if pkgerrors.IsNotFound(err) {
		w, err = entities.NewWatchlistWithConfig(s.config.DefaultWatchlistName, nil, s.config)
		if err != nil {
			return nil, err
		}
		w.ID = DefaultWatchlistID
		if err = s.watchlists.Save(ctx, w); err != nil {
			return nil, fmt.Errorf("failed to seed watchlist: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load default watchlist: %w", err)
	}

	result := &SeedResult{WatchlistID: w.ID}
	for _, value := range seedTerms {
		if w.HasTerm(value) {
			continue
		}
		term, err := w.NewTerm(value, s.config)
		if err != nil {
			return nil, err
		}
		if err := s.watchlists.AddTerm(ctx, term); err != nil {
			if pkgerrors.IsConflict(err) {
				continue
			}
			return nil, fmt.Errorf("failed to seed term %q: %w", value, err)
		}
		w.Terms = append(w.Terms, term)
		result.TermsAdded++
	}

	for _, input := range seedEvents {
		event, err := entities.NewEventWithConfig(input.Title, input.Description, input.Severity, s.config)
		if err != nil {
			return nil, err
		}
		if err := s.events.Save(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to seed event: %w", err)
		}
		result.EventIDs = append(result.EventIDs, event.ID)
	}

	s.logger.Info("Seed completed",
		zap.String("watchlistId", result.WatchlistID),
		zap.Int("termsAdded", result.TermsAdded),
		zap.Strings("eventIds", result.EventIDs),
	)
	return result, nil
}
