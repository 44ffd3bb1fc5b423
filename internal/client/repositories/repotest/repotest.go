// Package repotest opens throwaway local stores for repository tests.
package repotest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// OpenDB returns an in-memory SQLite database with the full local schema
// applied. The database is closed when the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	require.NoError(t, err)
	_, err = p.Up(context.Background())
	require.NoError(t, err)

	return db
}
