package regime

import (
	"context"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBarSource struct {
	calls int
}

func (f *fakeBarSource) DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]Bar, error) {
	f.calls++
	return flatBars(210, 100), nil
}

type fakeAlertStore struct {
	seeded map[string]domain.MarketRegimeAlert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{seeded: map[string]domain.MarketRegimeAlert{}}
}

func (f *fakeAlertStore) GetByDate(ctx context.Context, date time.Time) (domain.MarketRegimeAlert, bool, error) {
	a, ok := f.seeded[date.Format("2006-01-02")]
	return a, ok, nil
}

func (f *fakeAlertStore) Upsert(ctx context.Context, alert domain.MarketRegimeAlert) error {
	f.seeded[alert.Date.Format("2006-01-02")] = alert
	return nil
}

func TestSeederSkipsAlreadySeededDays(t *testing.T) {
	calc := New(DefaultConfig())
	bars := &fakeBarSource{}
	store := newFakeAlertStore()

	day1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	store.seeded[day1.Format("2006-01-02")] = domain.MarketRegimeAlert{Date: day1}

	seeder := NewSeeder(calc, bars, store, time.Millisecond, zerolog.Nop())
	err := seeder.Run(context.Background(), day1, day2, func(start, end time.Time) []time.Time {
		return []time.Time{day1, day2}
	})
	require.NoError(t, err)
	assert.Equal(t, 2, bars.calls) // one call per symbol for the single un-seeded day
	_, ok2, _ := store.GetByDate(context.Background(), day2)
	assert.True(t, ok2)
}

func TestSeederStopsOnContextCancellation(t *testing.T) {
	calc := New(DefaultConfig())
	bars := &fakeBarSource{}
	store := newFakeAlertStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	day1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	seeder := NewSeeder(calc, bars, store, time.Millisecond, zerolog.Nop())
	err := seeder.Run(ctx, day1, day1, func(start, end time.Time) []time.Time {
		return []time.Time{day1}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
