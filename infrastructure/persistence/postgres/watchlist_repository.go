package postgres

import (
	"context"
	"database/sql"
	"errors"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"
	pkgerrors "signalwatcher/pkg/errors"
)

// WatchlistRepository implements ports.WatchlistRepository on PostgreSQL
type WatchlistRepository struct {
	db *DB
}

// NewWatchlistRepository creates a new WatchlistRepository
func NewWatchlistRepository(db *DB) ports.WatchlistRepository {
	return &WatchlistRepository{db: db}
}

const selectWatchlists = `
	SELECT w.id, w.name, w.description, w.created_at, w.updated_at, t.id, t.term
	FROM watchlists w
	LEFT JOIN watchlist_terms t ON t.watchlist_id = w.id`

// List returns every watchlist with its terms, newest first
func (r *WatchlistRepository) List(ctx context.Context) ([]*entities.Watchlist, error) {
	rows, err := r.db.QueryContext(ctx, selectWatchlists+` ORDER BY w.created_at DESC, w.id, t.term ASC`)
	if err != nil {
		return nil, translateError("list watchlists", err)
	}
	defer rows.Close()

	return scanWatchlists(rows)
}

// GetByID returns one watchlist with terms ordered by value
func (r *WatchlistRepository) GetByID(ctx context.Context, id string) (*entities.Watchlist, error) {
	rows, err := r.db.QueryContext(ctx, selectWatchlists+` WHERE w.id = $1 ORDER BY t.term ASC`, id)
	if err != nil {
		return nil, translateError("get watchlist", err)
	}
	defer rows.Close()

	list, err := scanWatchlists(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pkgerrors.NewNotFoundError("watchlist")
	}
	return list[0], nil
}

func scanWatchlists(rows *sql.Rows) ([]*entities.Watchlist, error) {
	var (
		out   []*entities.Watchlist
		index = make(map[string]*entities.Watchlist)
	)

	for rows.Next() {
		var (
			w           entities.Watchlist
			description sql.NullString
			termID      sql.NullString
			term        sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &description, &w.CreatedAt, &w.UpdatedAt, &termID, &term); err != nil {
			return nil, translateError("scan watchlist", err)
		}

		current, seen := index[w.ID]
		if !seen {
			if description.Valid {
				d := description.String
				w.Description = &d
			}
			w.Terms = []entities.WatchlistTerm{}
			current = &w
			index[w.ID] = current
			out = append(out, current)
		}

		if termID.Valid {
			current.Terms = append(current.Terms, entities.WatchlistTerm{
				ID:          termID.String,
				Term:        term.String,
				WatchlistID: current.ID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate watchlists", err)
	}

	if out == nil {
		out = []*entities.Watchlist{}
	}
	return out, nil
}

// Save inserts a new watchlist
func (r *WatchlistRepository) Save(ctx context.Context, w *entities.Watchlist) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watchlists (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.Name, nullString(w.Description), w.CreatedAt, w.UpdatedAt)
	return translateError("create watchlist", err)
}

// Update writes the scalar fields of an existing watchlist
func (r *WatchlistRepository) Update(ctx context.Context, w *entities.Watchlist) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE watchlists SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		w.ID, w.Name, nullString(w.Description), w.UpdatedAt)
	if err != nil {
		return translateError("update watchlist", err)
	}
	return expectRow(res, "watchlist")
}

// Delete removes a watchlist. Terms go with it through ON DELETE CASCADE.
func (r *WatchlistRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM watchlists WHERE id = $1`, id)
	if err != nil {
		return translateError("delete watchlist", err)
	}
	return expectRow(res, "watchlist")
}

// AddTerm stores a term
func (r *WatchlistRepository) AddTerm(ctx context.Context, term entities.WatchlistTerm) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watchlist_terms (id, term, watchlist_id) VALUES ($1, $2, $3)`,
		term.ID, term.Term, term.WatchlistID)
	if err != nil {
		translated := translateError("add term", err)
		if pkgerrors.IsNotFound(translated) {
			return pkgerrors.NewNotFoundError("watchlist")
		}
		return translated
	}
	return nil
}

// DeleteTerm removes a term that belongs to watchlistID
func (r *WatchlistRepository) DeleteTerm(ctx context.Context, watchlistID, termID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist_terms WHERE id = $1 AND watchlist_id = $2`, termID, watchlistID)
	if err != nil {
		return translateError("delete term", err)
	}
	return expectRow(res, "term")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func expectRow(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translateError("rows affected", err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError(resource)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
