package entities

import (
	"strings"
	"testing"
	"time"

	"signalwatcher/domain/core/valueobjects"
	pkgerrors "signalwatcher/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewWatchlist(t *testing.T) {
	t.Run("Should trim and keep the description optional", func(t *testing.T) {
		w, err := NewWatchlist("  Security  ", nil)
		require.NoError(t, err)
		assert.Equal(t, "Security", w.Name)
		assert.Nil(t, w.Description)
		assert.Empty(t, w.Terms)
		assert.NotEmpty(t, w.ID)
		assert.Equal(t, w.CreatedAt, w.UpdatedAt)
	})

	t.Run("Should reject an empty or oversized name", func(t *testing.T) {
		_, err := NewWatchlist("   ", nil)
		assert.True(t, pkgerrors.IsValidation(err))

		_, err = NewWatchlist(strings.Repeat("x", 101), nil)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should reject an oversized description", func(t *testing.T) {
		_, err := NewWatchlist("ok", strPtr(strings.Repeat("d", 501)))
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestWatchlistApply(t *testing.T) {
	w, err := NewWatchlist("Old", strPtr("first"))
	require.NoError(t, err)
	before := w.UpdatedAt
	time.Sleep(time.Millisecond)

	require.NoError(t, w.Apply(WatchlistChanges{Name: strPtr("New")}, nil))
	assert.Equal(t, "New", w.Name)
	assert.Equal(t, "first", *w.Description, "untouched fields keep their value")
	assert.True(t, w.UpdatedAt.After(before))

	assert.Error(t, w.Apply(WatchlistChanges{Name: strPtr("")}, nil))
}

func TestWatchlistTerms(t *testing.T) {
	w, err := NewWatchlist("Ops", nil)
	require.NoError(t, err)

	t.Run("Should build a term bound to the watchlist", func(t *testing.T) {
		term, err := w.NewTerm("outage", nil)
		require.NoError(t, err)
		assert.Equal(t, w.ID, term.WatchlistID)
		w.Terms = append(w.Terms, term)
	})

	t.Run("Should treat a duplicate term as a conflict", func(t *testing.T) {
		_, err := w.NewTerm("outage", nil)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("Should sort terms ascending", func(t *testing.T) {
		for _, v := range []string{"security", "breach"} {
			term, err := w.NewTerm(v, nil)
			require.NoError(t, err)
			w.Terms = append(w.Terms, term)
		}
		w.SortTerms()
		assert.Equal(t, "breach", w.Terms[0].Term)
		assert.Equal(t, "outage", w.Terms[1].Term)
		assert.Equal(t, "security", w.Terms[2].Term)
	})

	t.Run("Should find terms by id", func(t *testing.T) {
		found, ok := w.FindTerm(w.Terms[0].ID)
		assert.True(t, ok)
		assert.Equal(t, "breach", found.Term)

		_, ok = w.FindTerm("missing")
		assert.False(t, ok)
	})
}

func TestNewEvent(t *testing.T) {
	t.Run("Should create an event without analyses", func(t *testing.T) {
		e, err := NewEvent("Service outage detected", "An outage in region us-east-1", valueobjects.SeverityHigh)
		require.NoError(t, err)
		assert.Empty(t, e.Analyses)
		assert.Equal(t, valueobjects.SeverityHigh, e.Snapshot().Severity)
	})

	t.Run("Should reject an unknown severity", func(t *testing.T) {
		_, err := NewEvent("t", "d", valueobjects.Severity("URGENT"))
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("Should order analyses newest first", func(t *testing.T) {
		now := time.Now()
		e := &Event{Analyses: []Analysis{
			{ID: "old", CreatedAt: now.Add(-time.Hour)},
			{ID: "new", CreatedAt: now},
		}}
		e.SortAnalyses()
		assert.Equal(t, "new", e.Analyses[0].ID)
	})
}
