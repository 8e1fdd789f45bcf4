package checkers

import (
	"testing"

	"github.com/canslim/sentinel/internal/database"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) *repository.SettingsRepository {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return repository.NewSettingsRepository(db.Conn(), zerolog.Nop())
}

func TestLoadConfigDefaultsWithNoOverrides(t *testing.T) {
	settings := newTestSettings(t)
	cfg, err := LoadConfig(settings)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigAppliesOverride(t *testing.T) {
	settings := newTestSettings(t)
	require.NoError(t, settings.SetFloat("checkers.stop_warn_pct", 3.5))
	require.NoError(t, settings.SetInt("checkers.ema21_sell_sessions", 5))

	cfg, err := LoadConfig(settings)
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.StopWarnPct)
	assert.Equal(t, 5, cfg.EMA21SellSessions)
	assert.Equal(t, DefaultConfig().MA50WarningPct, cfg.MA50WarningPct)
}
