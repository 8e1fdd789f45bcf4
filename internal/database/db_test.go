package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCreatesCoreTables(t *testing.T) {
	db, err := New(Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())

	tables := []string{"positions", "position_history", "alerts", "market_regime_alerts", "distribution_days", "outcomes", "settings", "learned_weights", "snapshots"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := New(Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestHealthCheck(t *testing.T) {
	db, err := New(Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
}
