// Package postgres implements every interface in internal/app/storage
// against a real database/sql + lib/pq connection: a single struct
// wrapping *sql.DB, raw parameterized SQL per method, var _ interface
// assertions up front.
// A *sqlx.DB wrapping the same connection is also built, but no query
// goes through it: every method scans its columns by hand.
package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/kraken-ng/kraken/internal/app/storage"
)

// Store is the postgres-backed implementation of every storage interface.
type Store struct {
	db   *sql.DB
	sqlx *sqlx.DB
}

var _ storage.WorkspaceStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.HostStore = (*Store)(nil)
var _ storage.PortStore = (*Store)(nil)
var _ storage.ServiceStore = (*Store)(nil)
var _ storage.HttpServiceStore = (*Store)(nil)
var _ storage.DomainStore = (*Store)(nil)
var _ storage.TagStore = (*Store)(nil)
var _ storage.AttackStore = (*Store)(nil)
var _ storage.RawResultStore = (*Store)(nil)
var _ storage.ProvenanceStore = (*Store)(nil)
var _ storage.FindingStore = (*Store)(nil)
var _ storage.SearchStore = (*Store)(nil)
var _ storage.EditorCacheStore = (*Store)(nil)
var _ storage.Database = (*Store)(nil)

// New wraps db as a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db, sqlx: sqlx.NewDb(db, "postgres")}
}

// conn is the subset of *sql.DB / *sql.Tx every method needs; WithTx
// threads a *sql.Tx through the context so nested calls share one
// transaction without every method taking an explicit tx parameter.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKeyType struct{}

var txKey = txKeyType{}

// WithTx begins a transaction (or, for a nested call already inside one,
// reuses it) and commits on success, rolling back on any error returned
// by fn -- the unit-of-work storage.Database requires for sink and
// manual-insertion handlers.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) conn(ctx context.Context) conn {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

