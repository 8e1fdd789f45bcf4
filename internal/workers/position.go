package workers

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/calendar"
	"github.com/canslim/sentinel/internal/checkers"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/canslim/sentinel/pkg/indicators"
	"github.com/rs/zerolog"
)

// Cadences named in SPEC_FULL.md §4.9: ~60s for the position and
// breakout workers during market hours, widening off-hours since
// there's nothing new to react to until the next session.
const (
	marketHoursInterval = 60 * time.Second
	offHoursInterval    = 15 * time.Minute

	barsLookbackDays = 260 // enough trading days for a 10-week (50-session) MA plus slack

	quoteCallTimeout = 5 * time.Second
	barsCallTimeout  = 30 * time.Second
)

// PositionWorker evaluates every open position against the checker suite
// once per tick, converting live quotes and cached daily bars into a
// PositionContext per symbol. A single symbol's provider error is logged
// and skipped; it never aborts the rest of the batch.
type PositionWorker struct {
	base

	positions *repository.PositionRepository
	regimes   *repository.RegimeRepository
	quotes    providers.RealtimeQuoteProvider
	bars      providers.HistoricalBarsProvider
	suite     *checkers.Suite
	alerts    *alerting.Service
	calendar  *calendar.Calendar
	cooldown  time.Duration
}

// NewPositionWorker wires a PositionWorker from its dependencies.
func NewPositionWorker(
	positions *repository.PositionRepository,
	regimes *repository.RegimeRepository,
	quotes providers.RealtimeQuoteProvider,
	bars providers.HistoricalBarsProvider,
	suite *checkers.Suite,
	alerts *alerting.Service,
	cal *calendar.Calendar,
	cooldown time.Duration,
	log zerolog.Logger,
) *PositionWorker {
	return &PositionWorker{
		base:      newBase("position", log),
		positions: positions, regimes: regimes, quotes: quotes, bars: bars,
		suite: suite, alerts: alerts, calendar: cal, cooldown: cooldown,
	}
}

// Start launches the position worker's cadence loop.
func (w *PositionWorker) Start(ctx context.Context) {
	w.runLoop(ctx, w.interval, w.tick)
}

func (w *PositionWorker) interval(now time.Time) time.Duration {
	if w.calendar != nil && w.calendar.IsMarketOpen(context.Background(), now) {
		return marketHoursInterval
	}
	return offHoursInterval
}

func (w *PositionWorker) tick(ctx context.Context) (int, error) {
	open, err := w.positions.GetInPosition()
	if err != nil {
		return 0, err
	}

	regime := w.currentRegime()

	processed := 0
	for _, p := range open {
		alerts, err := w.evaluate(ctx, p, regime)
		if err != nil {
			w.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("position evaluation skipped")
			continue
		}
		processed++
		for _, a := range alerts {
			if _, _, err := w.alerts.Emit(a); err != nil {
				w.log.Error().Err(err).Str("symbol", p.Symbol).Msg("alert emit failed")
			}
		}
	}
	return processed, nil
}

func (w *PositionWorker) currentRegime() domain.Regime {
	alert, err := w.regimes.GetCurrent()
	if err != nil || alert == nil {
		return domain.RegimeNeutral
	}
	return alert.Regime
}

func (w *PositionWorker) evaluate(ctx context.Context, p *domain.Position, regime domain.Regime) ([]alerting.AlertData, error) {
	qctx, cancel := context.WithTimeout(ctx, quoteCallTimeout)
	quote, err := w.quotes.GetQuote(qctx, p.Symbol)
	cancel()
	if err != nil || !w.quotes.IsConnected() {
		return nil, err
	}

	bctx, cancel := context.WithTimeout(ctx, barsCallTimeout)
	bars, err := w.bars.DailyBars(bctx, p.Symbol, quote.Time, barsLookbackDays)
	cancel()
	if err != nil {
		return nil, err
	}
	indicatorBars := providers.ToIndicatorBars(bars)

	p, err = w.positions.UpdatePrice(p.ID, quote.Last, quote.Time)
	if err != nil {
		return nil, err
	}

	volumeRatio := 0.0
	if quote.AvgVolume50D > 0 {
		volumeRatio = quote.Volume / quote.AvgVolume50D
	}

	pctx := checkers.FromPosition(
		p, quote.Last, quote.MA21, quote.MA50, quote.MA200, indicators.TenWeekMA(indicatorBars),
		volumeRatio, volumeRatio, regime, 0, wasEverExtended(p, bars),
	)

	return w.suite.Run(p, pctx, w.cooldown), nil
}

// wasEverExtended reports whether the position's historical closes ever
// traded far enough above its average cost to have crossed the pyramid
// extended-cutoff zone, the input PyramidChecker's PULLBACK rule needs
// and that isn't itself part of the persisted position record.
func wasEverExtended(p *domain.Position, bars []providers.Bar) bool {
	if p.AvgCost <= 0 {
		return false
	}
	extendedLevel := p.AvgCost * 1.05
	for _, b := range bars {
		if b.Close >= extendedLevel {
			return true
		}
	}
	return false
}
