package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"signalwatcher/domain/config"
	pkgerrors "signalwatcher/pkg/errors"

	"github.com/google/uuid"
)

// Watchlist is a named set of monitored terms
type Watchlist struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Terms       []WatchlistTerm `json:"terms"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// WatchlistTerm is one monitored term. A term value is unique within its watchlist.
type WatchlistTerm struct {
	ID          string `json:"id"`
	Term        string `json:"term"`
	WatchlistID string `json:"watchlistId"`
}

// WatchlistChanges carries a partial update. Nil fields are left untouched.
type WatchlistChanges struct {
	Name        *string
	Description *string
}

// NewWatchlist creates a watchlist with no terms
func NewWatchlist(name string, description *string) (*Watchlist, error) {
	return NewWatchlistWithConfig(name, description, config.DefaultDomainConfig())
}

// NewWatchlistWithConfig creates a watchlist validated against cfg
func NewWatchlistWithConfig(name string, description *string, cfg *config.DomainConfig) (*Watchlist, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	name, err := checkLength("name", name, cfg.MaxWatchlistNameLength)
	if err != nil {
		return nil, err
	}
	description, err = checkOptionalLength("description", description, cfg.MaxWatchlistDescriptionLength)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Watchlist{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Terms:       []WatchlistTerm{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply updates the watchlist in place and bumps UpdatedAt
func (w *Watchlist) Apply(changes WatchlistChanges, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if changes.Name != nil {
		name, err := checkLength("name", *changes.Name, cfg.MaxWatchlistNameLength)
		if err != nil {
			return err
		}
		w.Name = name
	}
	if changes.Description != nil {
		desc, err := checkOptionalLength("description", changes.Description, cfg.MaxWatchlistDescriptionLength)
		if err != nil {
			return err
		}
		w.Description = desc
	}

	w.UpdatedAt = time.Now().UTC()
	return nil
}

// HasTerm reports whether the watchlist already monitors term
func (w *Watchlist) HasTerm(term string) bool {
	for _, t := range w.Terms {
		if t.Term == term {
			return true
		}
	}
	return false
}

// FindTerm returns the term with the given id
func (w *Watchlist) FindTerm(termID string) (WatchlistTerm, bool) {
	for _, t := range w.Terms {
		if t.ID == termID {
			return t, true
		}
	}
	return WatchlistTerm{}, false
}

// NewTerm builds a term for this watchlist without attaching it. Duplicates
// are a conflict.
func (w *Watchlist) NewTerm(term string, cfg *config.DomainConfig) (WatchlistTerm, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	term, err := checkLength("term", term, cfg.MaxTermLength)
	if err != nil {
		return WatchlistTerm{}, err
	}
	if w.HasTerm(term) {
		return WatchlistTerm{}, pkgerrors.NewConflictError(fmt.Sprintf("term %q already exists in watchlist", term))
	}

	return WatchlistTerm{
		ID:          uuid.NewString(),
		Term:        term,
		WatchlistID: w.ID,
	}, nil
}

// SortTerms orders the terms by value, ascending
func (w *Watchlist) SortTerms() {
	sort.SliceStable(w.Terms, func(i, j int) bool {
		return w.Terms[i].Term < w.Terms[j].Term
	})
}

func checkLength(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", pkgerrors.NewValidationError(field + " cannot be empty")
	}
	if utf8.RuneCountInString(value) > max {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("%s exceeds maximum length of %d characters", field, max))
	}
	return value, nil
}

func checkOptionalLength(field string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v, err := checkLength(field, *value, max)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
