package postgres

import (
	"context"
	"database/sql"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"
	pkgerrors "signalwatcher/pkg/errors"
)

// EventRepository implements ports.EventRepository on PostgreSQL
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) ports.EventRepository {
	return &EventRepository{db: db}
}

// List returns events newest first, each with analyses newest first
func (r *EventRepository) List(ctx context.Context) ([]*entities.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.description, e.severity, e.created_at,
		       a.id, a.summary, a.severity, a.action, a.created_at
		FROM events e
		LEFT JOIN ai_analyses a ON a.event_id = e.id
		ORDER BY e.created_at DESC, e.id, a.created_at DESC`)
	if err != nil {
		return nil, translateError("list events", err)
	}
	defer rows.Close()

	out := []*entities.Event{}
	index := make(map[string]*entities.Event)
	for rows.Next() {
		var (
			e                  entities.Event
			aID, aSummary      sql.NullString
			aSeverity, aAction sql.NullString
			aCreatedAt         sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Severity, &e.CreatedAt,
			&aID, &aSummary, &aSeverity, &aAction, &aCreatedAt); err != nil {
			return nil, translateError("scan event", err)
		}

		current, seen := index[e.ID]
		if !seen {
			e.Analyses = []entities.Analysis{}
			current = &e
			index[e.ID] = current
			out = append(out, current)
		}
		if aID.Valid {
			current.Analyses = append(current.Analyses, entities.Analysis{
				ID:        aID.String,
				EventID:   current.ID,
				Summary:   aSummary.String,
				Severity:  severityOf(aSeverity.String),
				Action:    aAction.String,
				CreatedAt: aCreatedAt.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate events", err)
	}
	return out, nil
}

// GetByID returns one event without analyses
func (r *EventRepository) GetByID(ctx context.Context, id string) (*entities.Event, error) {
	var e entities.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, severity, created_at FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.Severity, &e.CreatedAt)
	if isNoRows(err) {
		return nil, pkgerrors.NewNotFoundError("event")
	}
	if err != nil {
		return nil, translateError("get event", err)
	}
	e.Analyses = []entities.Analysis{}
	return &e, nil
}

// Save inserts a new event
func (r *EventRepository) Save(ctx context.Context, e *entities.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, severity, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Title, e.Description, string(e.Severity), e.CreatedAt)
	return translateError("create event", err)
}
