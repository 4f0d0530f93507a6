// Package migrations applies the embedded SQL schema for the demonstration
// module's Postgres table. It uses golang-migrate's iofs source driver to
// parse and order migration files, then executes each directly rather than
// running the full migrate.Migrate engine, since a single demonstration
// table has no need for a schema_migrations version table or advisory locks.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// Apply runs every embedded up migration against db, in version order.
func Apply(ctx context.Context, db *sql.DB) error {
	src, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read first migration: %w", err)
	}

	for {
		if err := applyOne(ctx, db, src, version); err != nil {
			return err
		}

		next, err := src.Next(version)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read next migration after %d: %w", version, err)
		}
		version = next
	}
}

func applyOne(ctx context.Context, db *sql.DB, src source.Driver, version uint) error {
	rc, identifier, err := src.ReadUp(version)
	if err != nil {
		return fmt.Errorf("read migration %d: %w", version, err)
	}
	defer rc.Close()

	stmt, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", identifier, err)
	}

	if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
		return fmt.Errorf("apply migration %s: %w", identifier, err)
	}
	return nil
}
