// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/database"
)

// New returns a fresh, migrated in-memory database closed at test cleanup.
func New(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite"))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
