// Package db declares the minimal SQL abstraction the store layer runs
// against, trimmed to what a single-connection judge worker actually needs:
// query, exec, and one-shot transactions.
package db

import (
	"context"
	"database/sql"
)

// Row is the single-row result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows is a multi-row result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Result is the outcome of an Exec call.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Querier is the subset of Database/Transaction both support, letting
// repository code run the same query against either.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Transaction is a Querier scoped to one commit/rollback cycle.
type Transaction interface {
	Querier
	Commit() error
	Rollback() error
}

// Database is the top-level handle a worker opens once at startup.
type Database interface {
	Querier
	Transaction(ctx context.Context, fn func(tx Transaction) error) error
	Ping(ctx context.Context) error
	Close() error
}

type sqlRows struct{ *sql.Rows }
