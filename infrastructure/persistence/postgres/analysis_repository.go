package postgres

import (
	"context"

	"signalwatcher/application/ports"
	"signalwatcher/domain/core/entities"
	"signalwatcher/domain/core/valueobjects"
	pkgerrors "signalwatcher/pkg/errors"
)

// AnalysisRepository implements ports.AnalysisRepository on PostgreSQL
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new AnalysisRepository
func NewAnalysisRepository(db *DB) ports.AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save appends an analysis
func (r *AnalysisRepository) Save(ctx context.Context, a *entities.Analysis) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_analyses (id, event_id, summary, severity, action, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.EventID, a.Summary, string(a.Severity), a.Action, a.CreatedAt)
	if err != nil {
		translated := translateError("create analysis", err)
		if pkgerrors.IsNotFound(translated) {
			return pkgerrors.NewNotFoundError("event")
		}
		return translated
	}
	return nil
}

// ListByEvent returns the analyses of an event, newest first, with the event joined
func (r *AnalysisRepository) ListByEvent(ctx context.Context, eventID string) ([]*entities.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.summary, a.severity, a.action, a.created_at,
		       e.id, e.title, e.description, e.severity, e.created_at
		FROM ai_analyses a
		JOIN events e ON e.id = a.event_id
		WHERE a.event_id = $1
		ORDER BY a.created_at DESC`, eventID)
	if err != nil {
		return nil, translateError("list analyses", err)
	}
	defer rows.Close()

	out := []*entities.Analysis{}
	for rows.Next() {
		var (
			a entities.Analysis
			e entities.Event
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.Summary, &a.Severity, &a.Action, &a.CreatedAt,
			&e.ID, &e.Title, &e.Description, &e.Severity, &e.CreatedAt); err != nil {
			return nil, translateError("scan analysis", err)
		}
		a.Event = &e
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate analyses", err)
	}
	return out, nil
}

func severityOf(s string) valueobjects.Severity {
	return valueobjects.Severity(s)
}
