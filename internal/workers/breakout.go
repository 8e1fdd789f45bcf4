package workers

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/calendar"
	"github.com/canslim/sentinel/internal/checkers"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/execution"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/canslim/sentinel/internal/scoring"
	"github.com/canslim/sentinel/pkg/indicators"
	"github.com/rs/zerolog"
)

// BreakoutWorker evaluates watchlist items (state 0, watching) and
// re-entry candidates (state -1.5, watching_exited) on the same cadence
// as PositionWorker, against BreakoutChecker and AltEntryChecker. It also
// rescores each candidate from that cycle's bars before evaluating, and
// sizes any resulting BREAKOUT alert against the configured portfolio
// value.
type BreakoutWorker struct {
	base

	positions      *repository.PositionRepository
	regimes        *repository.RegimeRepository
	quotes         providers.RealtimeQuoteProvider
	bars           providers.HistoricalBarsProvider
	suite          *checkers.Suite
	alerts         *alerting.Service
	calendar       *calendar.Calendar
	cooldown       time.Duration
	scorer         *scoring.Scorer
	portfolioValue float64
}

// NewBreakoutWorker wires a BreakoutWorker from its dependencies.
func NewBreakoutWorker(
	positions *repository.PositionRepository,
	regimes *repository.RegimeRepository,
	quotes providers.RealtimeQuoteProvider,
	bars providers.HistoricalBarsProvider,
	suite *checkers.Suite,
	alerts *alerting.Service,
	cal *calendar.Calendar,
	cooldown time.Duration,
	scorer *scoring.Scorer,
	portfolioValue float64,
	log zerolog.Logger,
) *BreakoutWorker {
	return &BreakoutWorker{
		base:      newBase("breakout", log),
		positions: positions, regimes: regimes, quotes: quotes, bars: bars,
		suite: suite, alerts: alerts, calendar: cal, cooldown: cooldown,
		scorer: scorer, portfolioValue: portfolioValue,
	}
}

// Start launches the breakout worker's cadence loop.
func (w *BreakoutWorker) Start(ctx context.Context) {
	w.runLoop(ctx, w.interval, w.tick)
}

func (w *BreakoutWorker) interval(now time.Time) time.Duration {
	if w.calendar != nil && w.calendar.IsMarketOpen(context.Background(), now) {
		return marketHoursInterval
	}
	return offHoursInterval
}

func (w *BreakoutWorker) tick(ctx context.Context) (int, error) {
	watching, err := w.positions.GetWatching()
	if err != nil {
		return 0, err
	}
	exited, err := w.positions.GetWatchingExited()
	if err != nil {
		return 0, err
	}

	regime, err := w.currentRegime()
	if err != nil {
		w.log.Warn().Err(err).Msg("falling back to neutral regime")
	}

	processed := 0
	for _, p := range append(watching, exited...) {
		alerts, err := w.evaluate(ctx, p, regime)
		if err != nil {
			w.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("breakout evaluation skipped")
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

func (w *BreakoutWorker) currentRegime() (domain.Regime, error) {
	alert, err := w.regimes.GetCurrent()
	if err != nil {
		return domain.RegimeNeutral, err
	}
	if alert == nil {
		return domain.RegimeNeutral, nil
	}
	return alert.Regime, nil
}

func (w *BreakoutWorker) evaluate(ctx context.Context, p *domain.Position, regime domain.Regime) ([]alerting.AlertData, error) {
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

	p, err = w.rescore(p, indicatorBars)
	if err != nil {
		w.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("rescore persist failed; evaluating with cached grade")
	}

	volumeRatio := 0.0
	if quote.AvgVolume50D > 0 {
		volumeRatio = quote.Volume / quote.AvgVolume50D
	}

	pctx := checkers.FromPosition(
		p, quote.Last, quote.MA21, quote.MA50, quote.MA200, indicators.TenWeekMA(indicatorBars),
		volumeRatio, volumeRatio, regime, 0, false,
	)

	alerts := w.suite.Run(p, pctx, w.cooldown)
	w.logSizing(p, quote, alerts)
	return alerts, nil
}

// rescore recomputes (grade, score) from the position's static CAN-SLIM
// attributes plus this cycle's bars, persisting the result only when it
// actually moved — matching invariant 1 (change capture) the rest of
// PositionRepository.Update follows.
func (w *BreakoutWorker) rescore(p *domain.Position, bars []indicators.Bar) (*domain.Position, error) {
	in := scoring.Input{
		RSRating: p.RSRating, EPSRating: p.EPSRating, ADRating: p.ADRating,
		Pattern: p.Pattern, BaseStage: p.BaseStage, BaseDepth: p.BaseDepthPct, BaseLength: p.BaseLengthWeek,
		Bars: bars,
	}
	score, grade, _ := w.scorer.Score(in)
	if grade == p.EntryGrade && score == p.EntryScore {
		return p, nil
	}
	updated, err := w.positions.Update(p.ID, repository.UpdateOpts{
		EntryGrade: &grade, EntryScore: &score, ChangeSource: "rescore",
	})
	if err != nil {
		return p, err
	}
	return updated, nil
}

// logSizing attaches ExecutionFeasibility's sizing/liquidity-risk read on
// a confirmed or in-buy-zone breakout so the operator sees shares-needed
// and risk classification alongside the alert, without growing the
// alert schema itself.
func (w *BreakoutWorker) logSizing(p *domain.Position, quote providers.Quote, alerts []alerting.AlertData) {
	for _, a := range alerts {
		if a.AlertType != "BREAKOUT" || (a.AlertSubtype != "CONFIRMED" && a.AlertSubtype != "IN_BUY_ZONE") {
			continue
		}
		result := execution.Evaluate(execution.Input{
			Grade: p.EntryGrade, Pivot: p.Pivot, PortfolioValue: w.portfolioValue,
			AvgDailyVolume: quote.AvgVolume50D, Bid: quote.Bid, Ask: quote.Ask,
		})
		w.log.Info().Str("symbol", p.Symbol).Str("subtype", a.AlertSubtype).
			Int("shares_needed", result.SharesNeeded).Float64("pct_of_adv", result.PctOfADV).
			Str("risk", string(result.OverallRisk)).Msg("execution feasibility")
	}
}
