package state

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBInterface is the query surface shared by *DB and a wrapped *sqlx.Tx,
// so stores run unchanged inside a transaction.
type DBInterface interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)

	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

var _ DBInterface = (*DB)(nil)

type txWrapper struct {
	*sqlx.Tx
}

// WithTx on a transaction runs fn in the same transaction.
func (t *txWrapper) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(t.Tx)
}

var _ DBInterface = (*txWrapper)(nil)

// WrapTx wraps a transaction to implement DBInterface.
func WrapTx(tx *sqlx.Tx) DBInterface {
	return &txWrapper{Tx: tx}
}
