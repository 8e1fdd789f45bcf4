package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsGetSetRoundTrip(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t), testLogger())

	v, err := repo.Get("distribution_days.decline_threshold")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, repo.Set("distribution_days.decline_threshold", "-0.2", nil))
	v, err = repo.Get("distribution_days.decline_threshold")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "-0.2", *v)
}

func TestSettingsTypedAccessorsFallBackToDefault(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t), testLogger())

	f, err := repo.GetFloat("market_regime.thresholds.bullish_min", 0.8)
	require.NoError(t, err)
	assert.Equal(t, 0.8, f)

	i, err := repo.GetInt("alerts.cooldowns.default_minutes", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, i)

	b, err := repo.GetBool("distribution_days.enable_stalling", false)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestSettingsTypedAccessorsRoundTrip(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t), testLogger())

	require.NoError(t, repo.SetFloat("position_sizing.portfolio_value", 100000))
	f, err := repo.GetFloat("position_sizing.portfolio_value", 0)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, f)

	require.NoError(t, repo.SetInt("alerts.cooldowns.default_minutes", 45))
	i, err := repo.GetInt("alerts.cooldowns.default_minutes", 30)
	require.NoError(t, err)
	assert.Equal(t, 45, i)

	require.NoError(t, repo.SetBool("distribution_days.enable_stalling", true))
	b, err := repo.GetBool("distribution_days.enable_stalling", false)
	require.NoError(t, err)
	assert.True(t, b)
}

func TestSettingsGetAll(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t), testLogger())
	require.NoError(t, repo.Set("a", "1", nil))
	require.NoError(t, repo.Set("b", "2", nil))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}

func TestSettingsDelete(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t), testLogger())
	require.NoError(t, repo.Set("transient", "x", nil))
	require.NoError(t, repo.Delete("transient"))

	v, err := repo.Get("transient")
	require.NoError(t, err)
	assert.Nil(t, v)
}
