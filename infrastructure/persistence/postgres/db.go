package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"signalwatcher/pkg/observability"
	pkgerrors "signalwatcher/pkg/errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Options configures the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps *sql.DB so that every statement is logged at debug level and
// recorded in the metrics registry
type DB struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *observability.Registry
}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string, opts Options, logger *zap.Logger, metrics *observability.Registry) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = opts.MaxOpenConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDB(db, logger, metrics), nil
}

// NewDB wraps an already opened pool
func NewDB(db *sql.DB, logger *zap.Logger, metrics *observability.Registry) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		db:      db,
		logger:  logger.With(zap.String("component", "database")),
		metrics: metrics,
	}
}

// Close closes the pool
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks connectivity
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ExecContext runs a statement that returns no rows
func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := d.db.ExecContext(ctx, query, args...)
	d.observe(query, start, err)
	return res, err
}

// QueryContext runs a statement that returns rows
func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	d.observe(query, start, err)
	return rows, err
}

// QueryRowContext runs a statement that returns at most one row. Errors
// surface on Scan, so only the timing is recorded here.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	row := d.db.QueryRowContext(ctx, query, args...)
	d.observe(query, start, row.Err())
	return row
}

// WithTx runs fn in a transaction and commits when fn returns nil
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		d.observe("BEGIN", time.Now(), err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn("Transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}

	start := time.Now()
	err = tx.Commit()
	d.observe("COMMIT", start, err)
	return err
}

func (d *DB) observe(query string, start time.Time, err error) {
	duration := time.Since(start)
	operation := queryOperation(query)

	d.logger.Debug("Database query executed",
		zap.String("query", compactQuery(query)),
		zap.String("duration", fmt.Sprintf("%dms", duration.Milliseconds())),
		zap.String("operation", operation),
	)

	if d.metrics != nil {
		labels := observability.Labels{"operation": operation}
		d.metrics.Increment(observability.DBQueriesTotal, 1, labels)
		d.metrics.Timing(observability.DBQueryTiming, float64(duration.Milliseconds()), labels)
	}

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.logger.Error("Database error occurred", zap.Error(err), zap.String("operation", operation))
		if d.metrics != nil {
			d.metrics.Increment(observability.DBErrorsTotal, 1, observability.Labels{"operation": operation})
		}
	}
}

// queryOperation returns the lower-cased first keyword of a statement
func queryOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// translateError maps driver errors onto AppErrors
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return pkgerrors.NewConflictError("resource already exists").WithCause(err)
		case "23503": // foreign_key_violation
			return pkgerrors.NewNotFoundError("referenced resource").WithCause(err)
		}
	}

	return pkgerrors.NewDatabaseError(op, err)
}
