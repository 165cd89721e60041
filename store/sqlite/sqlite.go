/*
Package sqlite opens a SQLite-backed giftcert store.

PURPOSE:
  Supplies the SQLite dialect to store/sqlstore, which holds the schema and
  every query. This package only knows how to open the file and how to
  recognise a SQLite unique-constraint failure.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  The pool is capped at one connection. SQLite allows one writer anyway,
  and a single connection also keeps ":memory:" databases shared across
  calls. Competing redemptions are still decided by the version check in
  sqlstore.Update, not by the pool.

USAGE:
  store, err := sqlite.New(ctx, "./data/giftcert.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc, err := giftcert.NewService(giftcert.ServiceConfig{Store: store})

SEE ALSO:
  - store/sqlstore: Schema and queries
  - store/postgres: PostgreSQL dialect
  - giftcert/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/giftcert-engine/store/sqlstore"
)

// Dialect is the SQLite flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite3",
	Placeholder:       sqlstore.QuestionMark,
	IsUniqueViolation: isUniqueConstraintError,
}

// New opens (or creates) the database at path and migrates it.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
