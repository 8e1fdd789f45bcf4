package repository

import (
	"context"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegimeUpsertAndGetByDate(t *testing.T) {
	repo := NewRegimeRepository(newTestDB(t), testLogger())
	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	alert := domain.MarketRegimeAlert{
		Date:           day,
		CompositeScore: 5.5,
		Regime:         domain.RegimeBullish,
		SPYDCount:      1,
	}
	require.NoError(t, repo.Upsert(context.Background(), alert))

	got, found, err := repo.GetByDate(context.Background(), day)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.RegimeBullish, got.Regime)
	assert.Equal(t, 5.5, got.CompositeScore)

	alert.Regime = domain.RegimeBearish
	alert.CompositeScore = -2.0
	require.NoError(t, repo.Upsert(context.Background(), alert))

	updated, found, err := repo.GetByDate(context.Background(), day)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.RegimeBearish, updated.Regime)
	assert.Equal(t, -2.0, updated.CompositeScore)
}

func TestRegimeGetByDateNotFound(t *testing.T) {
	repo := NewRegimeRepository(newTestDB(t), testLogger())
	_, found, err := repo.GetByDate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRegimeGetRange(t *testing.T) {
	repo := NewRegimeRepository(newTestDB(t), testLogger())
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d := base.AddDate(0, 0, i)
		require.NoError(t, repo.Upsert(context.Background(), domain.MarketRegimeAlert{Date: d, Regime: domain.RegimeNeutral}))
	}

	results, err := repo.GetRange(base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDistributionDayLifecycle(t *testing.T) {
	repo := NewRegimeRepository(newTestDB(t), testLogger())
	day := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateDistributionDay(&domain.DistributionDay{
		Symbol: "SPY", Date: day, PctChange: -1.2, VolumeRatio: 1.3, TriggerClose: 500.0,
	}))

	active, err := repo.GetActiveDistributionDays("SPY", day.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Expired)

	require.NoError(t, repo.ExpireDistributionDay("SPY", day))

	activeAfterExpiry, err := repo.GetActiveDistributionDays("SPY", day.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Len(t, activeAfterExpiry, 0)
}
