// Package checkers implements the stateful alert-rule evaluators that run
// against a PositionContext snapshot: stop-loss, profit-taking, pyramid
// add-ons, moving-average breaks, health, breakout, and alternate-entry
// rules. Each checker is reentrant and holds no persistent state beyond
// an advisory in-memory cooldown map; the alerting repository remains
// the source of truth for suppression.
package checkers

import (
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// PositionContext is the read-only snapshot a worker builds once per
// cycle and hands to every checker in its suite.
type PositionContext struct {
	// Identity
	Symbol     string
	PositionID string
	State      domain.State
	Grade      string
	Score      float64

	// Market
	MarketRegime domain.Regime
	SPYPrice     float64

	// Prices
	CurrentPrice  float64
	AvgCost       float64
	Pivot         float64
	OriginalPivot float64
	StopPrice     float64
	TP1Target     float64
	TP2Target     float64
	// RunningHigh is the highest price ever observed for this position,
	// the trailing-stop formula's high-water-mark term.
	RunningHigh   float64

	// Derived
	PnLPct float64

	// Technicals
	MA21        float64
	MA50        float64
	MA200       float64
	MA10Week    float64
	VolumeRatio float64
	RVol        float64

	// Consecutive closes below MA21, persisted via
	// PositionRepository.IncrementMATestCount so EMA_21_SELL survives a
	// worker restart.
	MATestCount int

	// Whether this position previously traded above its pyramid
	// extended-cutoff zone; PyramidChecker's PULLBACK rule only applies
	// once a position has been extended at least once.
	WasExtended bool

	// Time
	EntryDate    time.Time
	EarningsDate time.Time
	Now          time.Time
}

// FromPosition builds a PositionContext from a persisted Position plus
// the live quote/technical inputs a worker gathered this cycle.
func FromPosition(p *domain.Position, currentPrice float64, ma21, ma50, ma200, ma10Week, volumeRatio, rvol float64, marketRegime domain.Regime, spyPrice float64, wasExtended bool) PositionContext {
	return PositionContext{
		Symbol: p.Symbol, PositionID: p.ID, State: p.State, Grade: p.EntryGrade, Score: p.EntryScore,
		MarketRegime: marketRegime, SPYPrice: spyPrice,
		CurrentPrice: currentPrice, AvgCost: p.AvgCost, Pivot: p.Pivot, OriginalPivot: p.OriginalPivot,
		StopPrice: p.StopPrice, TP1Target: p.TP1Target, TP2Target: p.TP2Target, RunningHigh: p.RunningHigh,
		PnLPct:      pnlPct(p.AvgCost, currentPrice),
		MA21:        ma21, MA50: ma50, MA200: ma200, MA10Week: ma10Week, VolumeRatio: volumeRatio, RVol: rvol,
		MATestCount: p.MATestCount, WasExtended: wasExtended,
		EntryDate: p.E1.Date, EarningsDate: p.EarningsDate, Now: time.Now(),
	}
}

func pnlPct(avgCost, currentPrice float64) float64 {
	if avgCost <= 0 {
		return 0
	}
	return (currentPrice - avgCost) / avgCost * 100
}

// Checker evaluates a PositionContext and returns zero or more alerts.
// Implementations must not mutate ctx or p, and a single rule failing to
// evaluate (missing context field) must return no alert rather than an
// error — only a genuine fault (e.g. a panic recovered by the suite)
// counts as a checker error.
type Checker interface {
	Name() string
	Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error)
}

func toAlertData(ctx PositionContext, alertType, subtype string) alerting.AlertData {
	return alerting.AlertData{
		Symbol: ctx.Symbol, PositionID: ctx.PositionID,
		AlertType: alertType, AlertSubtype: subtype,
		Price: ctx.CurrentPrice, PivotAtAlert: ctx.Pivot, AvgCostAtAlert: ctx.AvgCost,
		PnLPctAtAlert: ctx.PnLPct, VolumeRatio: ctx.VolumeRatio,
		MA21: ctx.MA21, MA50: ctx.MA50, Grade: ctx.Grade, Score: ctx.Score,
		MarketRegime: string(ctx.MarketRegime), StateAtAlert: ctx.State,
	}
}
