package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// SchemaVersion is one applied migration as recorded in schema_migrations
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"appliedAt"`
}

// Migration moves the schema from Version-1 to Version
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Executor is the subset of the database handle the evolution needs
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Step is one migration applied in a direction
type Step struct {
	Migration Migration
	Up        bool
}

const historyTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// SchemaEvolution manages database schema evolution
type SchemaEvolution struct {
	db         Executor
	migrations []Migration
	logger     *zap.Logger
}

// NewSchemaEvolution creates a new schema evolution manager
func NewSchemaEvolution(db Executor, logger *zap.Logger) *SchemaEvolution {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaEvolution{
		db:     db,
		logger: logger.With(zap.String("component", "schema")),
	}
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.Version <= 0 {
		return fmt.Errorf("invalid migration: version must be positive")
	}
	if migration.Up == "" {
		return fmt.Errorf("invalid migration %d: empty up statement", migration.Version)
	}
	for _, existing := range s.migrations {
		if existing.Version == migration.Version {
			return fmt.Errorf("migration %d already exists", migration.Version)
		}
	}

	s.migrations = append(s.migrations, migration)
	sort.Slice(s.migrations, func(i, j int) bool {
		return s.migrations[i].Version < s.migrations[j].Version
	})
	return nil
}

// Latest returns the highest registered version
func (s *SchemaEvolution) Latest() int {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].Version
}

// Plan lists the steps that take the schema from current to target
func (s *SchemaEvolution) Plan(current, target int) ([]Step, error) {
	if target < 0 || target > s.Latest() {
		return nil, fmt.Errorf("unknown target version %d", target)
	}

	var steps []Step
	if target >= current {
		for _, m := range s.migrations {
			if m.Version > current && m.Version <= target {
				steps = append(steps, Step{Migration: m, Up: true})
			}
		}
		return steps, nil
	}

	for i := len(s.migrations) - 1; i >= 0; i-- {
		m := s.migrations[i]
		if m.Version <= current && m.Version > target {
			if m.Down == "" {
				return nil, fmt.Errorf("migration %d does not support rollback", m.Version)
			}
			steps = append(steps, Step{Migration: m, Up: false})
		}
	}
	return steps, nil
}

// Migrate brings the database to targetVersion. A negative target means latest.
func (s *SchemaEvolution) Migrate(ctx context.Context, targetVersion int) error {
	if _, err := s.db.ExecContext(ctx, historyTable); err != nil {
		return fmt.Errorf("failed to create migration history: %w", err)
	}

	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if targetVersion < 0 {
		targetVersion = s.Latest()
	}

	steps, err := s.Plan(current, targetVersion)
	if err != nil {
		return err
	}

	for _, step := range steps {
		m := step.Migration
		if step.Up {
			if _, err := s.db.ExecContext(ctx, m.Up); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
				m.Version, m.Description); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
		} else {
			if _, err := s.db.ExecContext(ctx, m.Down); err != nil {
				return fmt.Errorf("rollback %d failed: %w", m.Version, err)
			}
			if _, err := s.db.ExecContext(ctx,
				`DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
				return fmt.Errorf("failed to record rollback %d: %w", m.Version, err)
			}
		}

		s.logger.Info("Applied schema migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
			zap.Bool("up", step.Up),
		)
	}

	return nil
}

// CurrentVersion returns the highest applied version, 0 for an empty database
func (s *SchemaEvolution) CurrentVersion(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	defer rows.Close()

	version := 0
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return 0, fmt.Errorf("failed to scan schema version: %w", err)
		}
	}
	return version, rows.Err()
}

// History returns the applied migrations, oldest first
func (s *SchemaEvolution) History(ctx context.Context) ([]SchemaVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	defer rows.Close()

	var history []SchemaVersion
	for rows.Next() {
		var v SchemaVersion
		if err := rows.Scan(&v.Version, &v.Description, &v.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, v)
	}
	return history, rows.Err()
}
