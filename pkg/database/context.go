package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so repository code is unaware of
// whether it runs inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type contextKey string

// QuerierKey is the context key for storing the active database querier.
const QuerierKey contextKey = "querier"

// GetQuerier retrieves the active querier from context.
// Returns nil and false if not present.
func GetQuerier(ctx context.Context) (Querier, bool) {
	q, ok := ctx.Value(QuerierKey).(Querier)
	return q, ok
}

// SetQuerier stores a querier in the context.
func SetQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, QuerierKey, q)
}

// WithPool returns a context whose querier is the connection pool.
// Background jobs use this to give repositories a connection source
// outside of an HTTP request.
func (db *DB) WithPool(ctx context.Context) context.Context {
	return SetQuerier(ctx, db.Pool)
}

// InTx runs fn with a context whose querier is a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise,
// so every repository call inside fn is atomic as a group.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := fn(SetQuerier(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
