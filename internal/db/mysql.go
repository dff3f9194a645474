package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	apperrors "judgecore/pkg/errors"
)

// MySQL is the Database implementation backed by database/sql's MySQL
// driver. One instance is opened per worker process at startup.
type MySQL struct {
	conn *sql.DB
}

// OpenMySQL opens and pings a MySQL connection pool from a DSN.
func OpenMySQL(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*MySQL, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	m := &MySQL{conn: conn}
	if err := m.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, apperrors.Wrap(err, apperrors.ServiceUnavailable)
	}
	return m, nil
}

func (m *MySQL) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := m.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return sqlRows{rows}, nil
}

func (m *MySQL) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return m.conn.QueryRowContext(ctx, query, args...)
}

func (m *MySQL) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	res, err := m.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return res, nil
}

func (m *MySQL) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	sqlTx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TransactionFailed)
	}
	tx := &mysqlTransaction{tx: sqlTx}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.TransactionFailed)
	}
	return nil
}

func (m *MySQL) Ping(ctx context.Context) error {
	return m.conn.PingContext(ctx)
}

func (m *MySQL) Close() error {
	return m.conn.Close()
}

type mysqlTransaction struct {
	tx *sql.Tx
}

func (t *mysqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return sqlRows{rows}, nil
}

func (t *mysqlTransaction) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *mysqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DatabaseError)
	}
	return res, nil
}

func (t *mysqlTransaction) Commit() error   { return t.tx.Commit() }
func (t *mysqlTransaction) Rollback() error { return t.tx.Rollback() }

// GetQuerier returns tx if present, otherwise the base database — lets
// repository methods accept an optional in-flight transaction.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx != nil {
		return tx
	}
	return database
}

// IsNoRows reports whether err is sql.ErrNoRows, the sentinel QueryRow
// returns when a lookup finds nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation reports whether err is a MySQL duplicate-key error
// (error 1062), and extracts the offending key name when present.
func UniqueViolation(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	msg := err.Error()
	if !strings.Contains(msg, "Error 1062") {
		return false, ""
	}
	return true, extractDuplicateKeyName(msg)
}

func extractDuplicateKeyName(msg string) string {
	const marker = "for key '"
	idx := strings.Index(msg, marker)
	if idx == -1 {
		return ""
	}
	rest := msg[idx+len(marker):]
	end := strings.Index(rest, "'")
	if end == -1 {
		return ""
	}
	return rest[:end]
}
