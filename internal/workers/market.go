package workers

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/calendar"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/events"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/regime"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/rs/zerolog"
)

// Cadences per SPEC_FULL.md §4.9: the regular regime refresh runs every
// 15 minutes, plus one deliberate extra run roughly 10 minutes after the
// open so the opening range is reflected before the other two workers'
// first market-hours tick.
const (
	marketWorkerInterval    = 15 * time.Minute
	morningOneShotDelay     = 10 * time.Minute
	regimeIndexLookbackDays = 260
)

// MarketWorker recomputes today's market-regime snapshot — D-day counts,
// follow-through-day phase, and composite/entry-risk scores — and
// persists it. PositionWorker and BreakoutWorker read the result through
// RegimeRepository.GetCurrent rather than recomputing it themselves.
type MarketWorker struct {
	base

	regimes   *repository.RegimeRepository
	bars      providers.HistoricalBarsProvider
	sentiment providers.SentimentProvider
	calc      *regime.Calculator
	cfg       regime.Config
	calendar  *calendar.Calendar
	bus       *events.Bus

	lastMorningOneShot time.Time // date of the last morning one-shot run, zero if none yet today
}

// NewMarketWorker wires a MarketWorker from its dependencies. bus may be
// nil, in which case regime-change notifications are simply not emitted.
func NewMarketWorker(
	regimes *repository.RegimeRepository,
	bars providers.HistoricalBarsProvider,
	sentiment providers.SentimentProvider,
	cfg regime.Config,
	cal *calendar.Calendar,
	bus *events.Bus,
	log zerolog.Logger,
) *MarketWorker {
	return &MarketWorker{
		base:      newBase("market", log),
		regimes:   regimes, bars: bars, sentiment: sentiment,
		calc: regime.New(cfg), cfg: cfg, calendar: cal, bus: bus,
	}
}

// Start launches the market worker's cadence loop.
func (w *MarketWorker) Start(ctx context.Context) {
	w.runLoop(ctx, w.interval, w.tick)
}

// interval returns the regular 15-minute cadence, except it shortens to
// a near-immediate tick once during the morning one-shot window (open to
// open+10m) that hasn't fired yet today, so the opening range gets
// folded into the regime before PositionWorker's and BreakoutWorker's
// first market-hours tick.
func (w *MarketWorker) interval(now time.Time) time.Duration {
	if w.calendar == nil {
		return marketWorkerInterval
	}
	open, _, ok := w.calendar.MarketHours(now)
	if !ok {
		return marketWorkerInterval
	}
	if sameDay(w.lastMorningOneShot, now) {
		return marketWorkerInterval
	}
	if !now.Before(open) && now.Before(open.Add(morningOneShotDelay)) {
		return time.Second
	}
	return marketWorkerInterval
}

// regimeChanged reports whether the freshly-computed regime differs from
// the previously-persisted one (or there was none), the condition that
// gates a RegimeChanged event.
func regimeChanged(previous *domain.MarketRegimeAlert, current domain.MarketRegimeAlert) bool {
	return previous == nil || previous.Regime != current.Regime
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (w *MarketWorker) tick(ctx context.Context) (int, error) {
	now := time.Now()

	spyBctx, cancel := context.WithTimeout(ctx, barsCallTimeout)
	spy, err := w.bars.DailyBars(spyBctx, "SPY", now, regimeIndexLookbackDays)
	cancel()
	if err != nil {
		return 0, err
	}

	qqqBctx, cancel := context.WithTimeout(ctx, barsCallTimeout)
	qqq, err := w.bars.DailyBars(qqqBctx, "QQQ", now, regimeIndexLookbackDays)
	cancel()
	if err != nil {
		return 0, err
	}

	spyDCount, spyDCount5Ago := w.countDistributionDays(providers.ToRegimeBars(spy))
	qqqDCount, qqqDCount5Ago := w.countDistributionDays(providers.ToRegimeBars(qqq))

	ftd := w.recoverFTDState(ctx, now, providers.ToRegimeBars(spy))

	in := regime.Inputs{
		Date:          now,
		SPYBars:       providers.ToRegimeBars(spy),
		QQQBars:       providers.ToRegimeBars(qqq),
		SPYDCount:     spyDCount,
		QQQDCount:     qqqDCount,
		SPYDCount5Ago: spyDCount5Ago,
		QQQDCount5Ago: qqqDCount5Ago,
		FTD:           ftd,
	}

	if fg, err := w.sentiment.Current(ctx); err == nil {
		in.HasFearGreed = true
		in.FearGreedScore = fg.Score
		in.FearGreedRating = fg.Rating
	} else {
		w.log.Warn().Err(err).Msg("sentiment unavailable this cycle, scoring without it")
	}

	previous, err := w.regimes.GetCurrent()
	if err != nil {
		w.log.Warn().Err(err).Msg("could not load prior regime; skipping change detection this cycle")
	}

	alert := w.calc.Compute(in)
	if err := w.regimes.Upsert(ctx, alert); err != nil {
		return 0, err
	}

	if w.bus != nil && regimeChanged(previous, alert) {
		w.bus.Emit(events.RegimeChanged, "market", alert)
	}

	if w.calendar != nil {
		if open, _, ok := w.calendar.MarketHours(now); ok && !now.Before(open) && now.Before(open.Add(morningOneShotDelay)) {
			w.lastMorningOneShot = now
		}
	}

	return 1, nil
}

// countDistributionDays counts active D-days in the rolling window for
// the index symbol's bars, plus the count as of 5 sessions ago (for the
// trend classification), by re-evaluating DetectDistributionDay pairwise
// rather than trusting a stored running total.
func (w *MarketWorker) countDistributionDays(bars []regime.Bar) (current, fiveAgo float64) {
	if len(bars) < 2 {
		return 0, 0
	}
	window := w.cfg.DDay.WindowSessions
	cutoff := len(bars) - window
	if cutoff < 1 {
		cutoff = 1
	}
	fiveAgoIdx := len(bars) - 6
	cutoff5Ago := fiveAgoIdx + 1 - window
	if cutoff5Ago < 1 {
		cutoff5Ago = 1
	}

	count := 0.0
	countAt5Ago := 0.0
	for i := cutoff5Ago; i < len(bars); i++ {
		if _, isDDay := regime.DetectDistributionDay("", bars[i-1], bars[i], w.cfg.DDay); isDDay {
			if i >= cutoff {
				count++
			}
			if i <= fiveAgoIdx {
				countAt5Ago++
			}
		}
	}
	return count, countAt5Ago
}

// recoverFTDState loads yesterday's persisted alert (if any) to recover
// the follow-through-day tracker's carried state, then advances it one
// trading day using today's SPY bar.
func (w *MarketWorker) recoverFTDState(ctx context.Context, now time.Time, spy []regime.Bar) regime.FTDState {
	state := regime.NewFTDState()
	yesterday, exists, err := w.regimes.GetByDate(ctx, now.AddDate(0, 0, -1))
	if err == nil && exists {
		state = regime.FTDState{
			Phase:           yesterday.MarketPhase,
			RallyDay:        yesterday.RallyDay,
			HasConfirmedFTD: yesterday.HasConfirmedFTD,
		}
	}

	if len(spy) < 2 {
		return state
	}
	today := spy[len(spy)-1]
	prior := spy[len(spy)-2]

	return regime.Advance(state, regime.FTDInput{
		Close: today.Close, PriorClose: prior.Close,
		Volume: today.Volume, PriorVolume: prior.Volume,
		DDayCount:      0,
		IsBottomingDay: isBottomingDay(prior, today),
	}, w.cfg)
}

// isBottomingDay is a minimal day-1-of-rally heuristic: a strong
// reversal close off a decline, the trigger FTDState.Advance looks for
// when in CORRECTION.
func isBottomingDay(prior, today regime.Bar) bool {
	if prior.Close <= 0 {
		return false
	}
	changePct := (today.Close - prior.Close) / prior.Close * 100
	return changePct >= 1.0
}
