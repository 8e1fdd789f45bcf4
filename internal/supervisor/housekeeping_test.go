package supervisor

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/database"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) (*repository.PositionRepository, *repository.RegimeRepository) {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	return repository.NewPositionRepository(db.Conn(), zerolog.Nop()),
		repository.NewRegimeRepository(db.Conn(), zerolog.Nop())
}

func TestHousekeepingJobExpiresStaleDistributionDay(t *testing.T) {
	positions, regimes := newTestRepos(t)

	stale := &domain.DistributionDay{
		Date: time.Now().AddDate(0, 0, -ddayWindowDays-5),
		Symbol: "SPY", PctChange: -1.2, VolumeRatio: 1.3, TriggerClose: 500,
	}
	require.NoError(t, regimes.CreateDistributionDay(stale))

	job := &housekeepingJob{positions: positions, regimes: regimes}
	require.NoError(t, job.Run())

	active, err := regimes.GetActiveDistributionDays("SPY", time.Time{})
	require.NoError(t, err)
	for _, d := range active {
		require.NotEqual(t, stale.Date.Format("2006-01-02"), d.Date.Format("2006-01-02"))
	}
}
