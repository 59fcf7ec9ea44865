// Package dbtest provides migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
	"github.com/TIPA-VN/uxone-sub003/internal/database"
)

// NewSQLite opens a private in-memory database with the full schema applied.
// The handle is closed when the test ends.
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Driver: "sqlite3", Name: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Migrate(ctx, db, zerolog.Nop())
	require.NoError(t, err)
	return db
}
