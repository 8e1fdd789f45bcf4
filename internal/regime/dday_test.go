package regime

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDetectDistributionDay(t *testing.T) {
	cfg := DefaultConfig().DDay
	yesterday := Bar{Close: 100, Volume: 1_000_000}
	today := Bar{Close: 99.5, Volume: 1_100_000, Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}
	d, ok := DetectDistributionDay("SPY", yesterday, today, cfg)
	assert.True(t, ok)
	assert.Equal(t, -0.5, d.PctChange)
	assert.InDelta(t, 1.1, d.VolumeRatio, 0.001)
}

func TestDetectDistributionDayRequiresBothConditions(t *testing.T) {
	cfg := DefaultConfig().DDay
	yesterday := Bar{Close: 100, Volume: 1_000_000}
	// Decline deep enough but volume did not rise.
	today := Bar{Close: 98, Volume: 900_000}
	_, ok := DetectDistributionDay("SPY", yesterday, today, cfg)
	assert.False(t, ok)
}

func TestRollingWindowExcludesOldDDays(t *testing.T) {
	cfg := DefaultConfig().DDay
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	days := []domain.DistributionDay{
		{Date: base, Symbol: "SPY", PctChange: -1, TriggerClose: 100},
	}
	// A D-Day 30 sessions old should not count.
	count := RollingCount(days, base.AddDate(0, 0, 40), 100, func(d time.Time) int { return 30 }, cfg)
	assert.Equal(t, 0.0, count)

	// A D-Day 10 sessions old should count.
	count = RollingCount(days, base.AddDate(0, 0, 14), 100, func(d time.Time) int { return 10 }, cfg)
	assert.Equal(t, 1.0, count)
}

func TestRollingWindowExpiresOnPriceAdvance(t *testing.T) {
	cfg := DefaultConfig().DDay
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	days := []domain.DistributionDay{
		{Date: base, Symbol: "SPY", PctChange: -1, TriggerClose: 100},
	}
	// Price has advanced 6% above the triggering close: expired.
	count := RollingCount(days, base.AddDate(0, 0, 5), 106, func(d time.Time) int { return 3 }, cfg)
	assert.Equal(t, 0.0, count)
}

func TestStallingDayHalfWeight(t *testing.T) {
	cfg := DefaultConfig().DDay
	cfg.EnableStalling = true
	yesterday := Bar{Close: 100, Volume: 1_000_000}
	today := Bar{Close: 99.9, Volume: 1_000_000, Date: time.Now()} // tiny move, flat volume
	d, ok := DetectDistributionDay("SPY", yesterday, today, cfg)
	assert.True(t, ok)
	assert.Equal(t, 0.5, StallingWeight(d, cfg))
}

func TestStallingDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig().DDay
	assert.False(t, cfg.EnableStalling)
}
