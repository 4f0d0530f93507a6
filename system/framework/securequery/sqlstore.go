package securequery

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	// Registers the "postgres" driver used by sqlx.Connect/Open below.
	_ "github.com/lib/pq"
)

// Store is the concrete Postgres-backed executor for UnscopedQuery /
// ScopedQuery. It wraps a *sqlx.DB, which already implements the handle
// interface (SelectContext/GetContext/ExecContext/Rebind), plus BeginTxx
// for WithTransaction.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an already-open *sqlx.DB.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to a Postgres database at dsn and wraps it in a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, &InfraError{Op: "connect", Err: err}
	}
	return NewStore(db), nil
}

// Handle returns the handle used to run queries against this store, for
// NewQuery's db argument.
func (s *Store) Handle() handle { return s.db }

// BeginTxx satisfies txBeginner for WithTransaction.
func (s *Store) BeginTxx(ctx context.Context, opts *sql.TxOptions) (handle, error) {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sqlx.DB, for callers (e.g. ModuleContext.DB)
// that need the raw handle rather than the securequery wrapper.
func (s *Store) DB() *sqlx.DB { return s.db }
