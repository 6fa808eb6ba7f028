// Package dbx holds the small database/sql abstractions shared by the
// catalog repositories.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with the transactional handle and
// commits when fn succeeds. It rolls back when fn returns an error or
// panics; panics are rethrown after the rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return repo(tx).MarkSensitive(ctx, id)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// Transactor runs fn as one unit of work against the catalog.
type Transactor func(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error

// TxOn returns a Transactor that wraps every unit in a transaction on db.
func TxOn(db *sql.DB) Transactor {
	return func(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
		return WithTx(ctx, db, nil, fn)
	}
}

// Direct returns a Transactor that runs fn on db without a transaction.
func Direct(db DBTX) Transactor {
	return func(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
		return fn(ctx, db)
	}
}
