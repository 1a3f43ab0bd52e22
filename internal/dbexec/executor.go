// Package dbexec executes compiled predicates against a SQL database.
// Executor is the contract used by the GraphQL resolvers; SQLExecutor implements
// it with squirrel on top of a QueryExecutor.
package dbexec

import (
	"context"
	"database/sql"

	"table-graphql/internal/introspection"
	"table-graphql/internal/predicate"
)

// Row is a plain mapping from column name to value.
type Row = map[string]any

// Executor runs selects and updates for a table. A nil predicate matches every row.
type Executor interface {
	// Select returns matching rows; limit <= 0 means no limit.
	Select(ctx context.Context, table introspection.Table, pred predicate.Expr, limit int) ([]Row, error)
	// Update assigns set to matching rows and returns the affected rows.
	Update(ctx context.Context, table introspection.Table, set map[string]any, pred predicate.Expr) ([]Row, error)
}

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts raw SQL execution.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}
