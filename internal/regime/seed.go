package regime

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// BarSource supplies historical daily bars for an index symbol, paced by
// the caller per the provider's rate limit.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]Bar, error)
}

// AlertStore is the subset of the regime repository the seeder needs:
// check what's already seeded, and persist new computations.
type AlertStore interface {
	GetByDate(ctx context.Context, date time.Time) (domain.MarketRegimeAlert, bool, error)
	Upsert(ctx context.Context, alert domain.MarketRegimeAlert) error
}

// Seeder runs the Calculator over a historical date range, pacing bar
// fetches at delay and skipping dates already persisted (resumable).
type Seeder struct {
	calc  *Calculator
	bars  BarSource
	store AlertStore
	delay time.Duration
	log   zerolog.Logger
}

// NewSeeder constructs a Seeder. delay is the pause between one day's
// historical-bars fetches and the next day's; the SPY and QQQ fetches
// of a single day are sent back to back. NewSeeder applies no default.
func NewSeeder(calc *Calculator, bars BarSource, store AlertStore, delay time.Duration, log zerolog.Logger) *Seeder {
	return &Seeder{calc: calc, bars: bars, store: store, delay: delay, log: log.With().Str("component", "regime_seeder").Logger()}
}

// Run computes and persists one MarketRegimeAlert per trading day from
// start to end (ascending, inclusive), skipping dates already in the
// store.
func (s *Seeder) Run(ctx context.Context, start, end time.Time, tradingDays func(start, end time.Time) []time.Time) error {
	days := tradingDays(start, end)
	for i, day := range days {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, exists, err := s.store.GetByDate(ctx, day); err != nil {
			return err
		} else if exists {
			continue
		}

		spy, err := s.bars.DailyBars(ctx, "SPY", day, 260)
		if err != nil {
			s.log.Warn().Err(err).Time("date", day).Msg("failed to fetch SPY bars, skipping day")
			continue
		}
		qqq, err := s.bars.DailyBars(ctx, "QQQ", day, 260)
		if err != nil {
			s.log.Warn().Err(err).Time("date", day).Msg("failed to fetch QQQ bars, skipping day")
			continue
		}

		alert := s.calc.Compute(Inputs{Date: day, SPYBars: spy, QQQBars: qqq})
		if err := s.store.Upsert(ctx, alert); err != nil {
			return err
		}

		if i < len(days)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return nil
}
