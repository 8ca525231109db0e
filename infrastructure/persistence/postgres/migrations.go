package postgres

import (
	"context"

	"signalwatcher/infrastructure/persistence/schema"

	"go.uber.org/zap"
)

// Migrations returns the schema history of the service
func Migrations() []schema.Migration {
	return []schema.Migration{
		{
			Version:     1,
			Description: "create watchlists and terms",
			Up: `
CREATE TABLE IF NOT EXISTS watchlists (
	id          TEXT PRIMARY KEY,
	name        VARCHAR(100) NOT NULL,
	description VARCHAR(500),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS watchlist_terms (
	id           TEXT PRIMARY KEY,
	term         VARCHAR(50) NOT NULL,
	watchlist_id TEXT NOT NULL REFERENCES watchlists(id) ON DELETE CASCADE,
	UNIQUE (watchlist_id, term)
);`,
			Down: `DROP TABLE IF EXISTS watchlist_terms; DROP TABLE IF EXISTS watchlists;`,
		},
		{
			Version:     2,
			Description: "create events and analyses",
			Up: `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       VARCHAR(200) NOT NULL,
	description VARCHAR(1000) NOT NULL,
	severity    TEXT NOT NULL CHECK (severity IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS ai_analyses (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	summary    TEXT NOT NULL,
	severity   TEXT NOT NULL CHECK (severity IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
	action     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ai_analyses_event_id_idx ON ai_analyses (event_id, created_at DESC);`,
			Down: `DROP TABLE IF EXISTS ai_analyses; DROP TABLE IF EXISTS events;`,
		},
	}
}

// Migrate applies every pending migration
func Migrate(ctx context.Context, db *DB, logger *zap.Logger) error {
	evolution := schema.NewSchemaEvolution(db, logger)
	for _, m := range Migrations() {
		if err := evolution.RegisterMigration(m); err != nil {
			return err
		}
	}
	return evolution.Migrate(ctx, -1)
}
