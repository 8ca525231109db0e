// Package memory keeps watchlists, events and analyses in process memory.
// It backs the API when no database is configured and serves as the test
// double for the services.
package memory

import (
	"context"
	"sort"
	"sync"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"
	pkgerrors "signalwatcher/pkg/errors"
)

// Store holds all records behind one lock
type Store struct {
	mu         sync.RWMutex
	watchlists map[string]*entities.Watchlist
	events     map[string]*entities.Event
	analyses   map[string][]*entities.Analysis
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		watchlists: make(map[string]*entities.Watchlist),
		events:     make(map[string]*entities.Event),
		analyses:   make(map[string][]*entities.Analysis),
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Watchlists returns the watchlist repository view of the store
func (s *Store) Watchlists() ports.WatchlistRepository { return &WatchlistRepository{s} }

// Events returns the event repository view of the store
func (s *Store) Events() ports.EventRepository { return &EventRepository{s} }

// Analyses returns the analysis repository view of the store
func (s *Store) Analyses() ports.AnalysisRepository { return &AnalysisRepository{s} }

// WatchlistRepository implements ports.WatchlistRepository
type WatchlistRepository struct{ s *Store }

func cloneWatchlist(w *entities.Watchlist) *entities.Watchlist {
	out := *w
	out.Terms = append([]entities.WatchlistTerm{}, w.Terms...)
	if w.Description != nil {
		d := *w.Description
		out.Description = &d
	}
	out.SortTerms()
	return &out
}

// List returns every watchlist, newest first
func (r *WatchlistRepository) List(ctx context.Context) ([]*entities.Watchlist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Watchlist, 0, len(r.s.watchlists))
	for _, w := range r.s.watchlists {
		out = append(out, cloneWatchlist(w))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID returns one watchlist
func (r *WatchlistRepository) GetByID(ctx context.Context, id string) (*entities.Watchlist, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.watchlists[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("watchlist")
	}
	return cloneWatchlist(w), nil
}

// Save inserts a watchlist
func (r *WatchlistRepository) Save(ctx context.Context, w *entities.Watchlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.watchlists[w.ID]; exists {
		return pkgerrors.NewConflictError("watchlist already exists")
	}
	r.s.watchlists[w.ID] = cloneWatchlist(w)
	return nil
}

// Update overwrites the scalar fields of a watchlist
func (r *WatchlistRepository) Update(ctx context.Context, w *entities.Watchlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.watchlists[w.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("watchlist")
	}
	stored.Name = w.Name
	stored.Description = w.Description
	stored.UpdatedAt = w.UpdatedAt
	return nil
}

// Delete removes a watchlist and, with it, its terms
func (r *WatchlistRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.watchlists[id]; !ok {
		return pkgerrors.NewNotFoundError("watchlist")
	}
	delete(r.s.watchlists, id)
	return nil
}

// AddTerm appends a term to its watchlist
func (r *WatchlistRepository) AddTerm(ctx context.Context, term entities.WatchlistTerm) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.watchlists[term.WatchlistID]
	if !ok {
		return pkgerrors.NewNotFoundError("watchlist")
	}
	if w.HasTerm(term.Term) {
		return pkgerrors.NewConflictError("term already exists in watchlist")
	}
	w.Terms = append(w.Terms, term)
	return nil
}

// DeleteTerm removes a term that belongs to watchlistID
func (r *WatchlistRepository) DeleteTerm(ctx context.Context, watchlistID, termID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.watchlists[watchlistID]
	if !ok {
		return pkgerrors.NewNotFoundError("watchlist")
	}
	for i, t := range w.Terms {
		if t.ID == termID {
			w.Terms = append(w.Terms[:i], w.Terms[i+1:]...)
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("term")
}

// EventRepository implements ports.EventRepository
type EventRepository struct{ s *Store }

// List returns events newest first, each with its analyses newest first
func (r *EventRepository) List(ctx context.Context) ([]*entities.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		ev := *e
		ev.Analyses = make([]entities.Analysis, 0, len(r.s.analyses[e.ID]))
		for _, a := range r.s.analyses[e.ID] {
			ev.Analyses = append(ev.Analyses, *a)
		}
		ev.SortAnalyses()
		out = append(out, &ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID returns one event without analyses
func (r *EventRepository) GetByID(ctx context.Context, id string) (*entities.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("event")
	}
	ev := *e
	ev.Analyses = []entities.Analysis{}
	return &ev, nil
}

// Save inserts an event
func (r *EventRepository) Save(ctx context.Context, e *entities.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.events[e.ID]; exists {
		return pkgerrors.NewConflictError("event already exists")
	}
	ev := *e
	ev.Analyses = nil
	r.s.events[e.ID] = &ev
	return nil
}

// AnalysisRepository implements ports.AnalysisRepository
type AnalysisRepository struct{ s *Store }

// Save appends an analysis to an existing event
func (r *AnalysisRepository) Save(ctx context.Context, a *entities.Analysis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[a.EventID]; !ok {
		return pkgerrors.NewNotFoundError("event")
	}
	stored := *a
	stored.Event = nil
	r.s.analyses[a.EventID] = append(r.s.analyses[a.EventID], &stored)
	return nil
}

// ListByEvent returns the analyses of an event with the event attached
func (r *AnalysisRepository) ListByEvent(ctx context.Context, eventID string) ([]*entities.Analysis, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.analyses[eventID]
	out := make([]*entities.Analysis, 0, len(stored))
	event := r.s.events[eventID]
	for _, a := range stored {
		cp := *a
		if event != nil {
			ev := *event
			ev.Analyses = nil
			cp.Event = &ev
		}
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
