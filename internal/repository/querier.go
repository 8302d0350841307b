package repository

import (
	"context"
	"database/sql"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that a query can be
// written once and run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nowUTC is the timestamp written into created_at style columns.  Times are
// supplied by the application rather than SQL defaults so that MySQL and
// SQLite store identical values.
func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }
