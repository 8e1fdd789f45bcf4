package repository

import (
	"database/sql"
	"testing"

	"github.com/canslim/sentinel/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// newTestDB returns an in-memory, fully migrated database connection
// shared by every repository's tests.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db.Conn()
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
