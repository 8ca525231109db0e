package services

import (
	"context"
	"fmt"

	"signalwatcher/application/ports"
	"signalwatcher/domain/config"
	"signalwatcher/domain/core/entities"
	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// WatchlistService manages watchlists and their terms
type WatchlistService struct {
	repo    ports.WatchlistRepository
	config  *config.DomainConfig
	logger  *zap.Logger
	metrics *observability.Registry
}

// NewWatchlistService creates a new watchlist service
func NewWatchlistService(
	repo ports.WatchlistRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Registry,
) *WatchlistService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchlistService{
		repo:    repo,
		config:  cfg,
		logger:  logger.Named("watchlists"),
		metrics: metrics,
	}
}

// List returns every watchlist with its terms
func (s *WatchlistService) List(ctx context.Context) ([]*entities.Watchlist, error) {
	return s.repo.List(ctx)
}

// Get returns one watchlist with its terms ordered by value
func (s *WatchlistService) Get(ctx context.Context, id string) (*entities.Watchlist, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.SortTerms()
	return w, nil
}

// Create stores a new, empty watchlist
func (s *WatchlistService) Create(ctx context.Context, name string, description *string) (*entities.Watchlist, error) {
	w, err := entities.NewWatchlistWithConfig(name, description, s.config)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save watchlist: %w", err)
	}

	s.increment(observability.WatchlistsCreated)
	common.LoggerFrom(ctx, s.logger).Info("Watchlist created",
		zap.String("watchlistId", w.ID),
		zap.String("name", w.Name),
	)
	return w, nil
}

// Update applies a partial update. A missing watchlist is a NotFound error.
func (s *WatchlistService) Update(ctx context.Context, id string, changes entities.WatchlistChanges) (*entities.Watchlist, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.Apply(changes, s.config); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}

	w.SortTerms()
	return w, nil
}

// Delete removes a watchlist together with its terms
func (s *WatchlistService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	common.LoggerFrom(ctx, s.logger).Info("Watchlist deleted", zap.String("watchlistId", id))
	return nil
}

// AddTerm adds a term to a watchlist. The same value twice is a Conflict.
func (s *WatchlistService) AddTerm(ctx context.Context, watchlistID, term string) (*entities.WatchlistTerm, error) {
	w, err := s.repo.GetByID(ctx, watchlistID)
	if err != nil {
		return nil, err
	}

	t, err := w.NewTerm(term, s.config)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddTerm(ctx, t); err != nil {
		return nil, err
	}

	s.increment(observability.TermsAdded)
	return &t, nil
}

// DeleteTerm removes a term. The term must belong to the watchlist.
func (s *WatchlistService) DeleteTerm(ctx context.Context, watchlistID, termID string) error {
	return s.repo.DeleteTerm(ctx, watchlistID, termID)
}

func (s *WatchlistService) increment(name string) {
	if s.metrics != nil {
		s.metrics.Increment(name, 1, nil)
	}
}
