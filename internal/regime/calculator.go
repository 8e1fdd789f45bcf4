package regime

import (
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/pkg/stats"
)

// Inputs bundles everything Calculator.Compute needs for one trading
// date: SPY/QQQ daily bars (most recent last), D-Day counts already
// rolled up per symbol, FTD tracker state, overnight futures, and
// optional sentiment.
type Inputs struct {
	Date time.Time

	SPYBars []Bar
	QQQBars []Bar

	SPYDCount     float64
	QQQDCount     float64
	SPYDCount5Ago float64
	QQQDCount5Ago float64

	FTD FTDState

	ESChangePct, NQChangePct, YMChangePct float64

	HasFearGreed    bool
	FearGreedScore  int
	FearGreedRating domain.FearGreedRating

	VIXClose float64
}

// Calculator is a pure value function over Inputs, bound to a Config
// snapshot. Deterministic for a given config version, per the
// determinism invariant (testable property #8).
type Calculator struct {
	cfg Config
}

// New constructs a Calculator bound to cfg.
func New(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute produces the MarketRegimeAlert for Inputs.Date.
func (c *Calculator) Compute(in Inputs) domain.MarketRegimeAlert {
	maScore := c.maPositioningScore(in.SPYBars, in.QQQBars)
	momentum := averageChangePct(in.SPYBars, in.QQQBars)
	momentumComponent := stats.Saturate(momentum, -3, 3)

	maxD := in.SPYDCount
	if in.QQQDCount > maxD {
		maxD = in.QQQDCount
	}
	dDayPenalty := -c.cfg.Weights.DDayPenalty * maxD
	dDayPenaltyNorm := stats.Saturate(maxD, 0, 10)

	ftdAdj := c.ftdAdjustment(in.FTD)
	ftdConfidence := Confidence(in.FTD, c.cfg)

	fgComponent := 0.0
	if in.HasFearGreed {
		fgComponent = float64(in.FearGreedScore-50) / 50
	}

	composite := c.cfg.Weights.MAPositioning*maScore +
		c.cfg.Weights.Momentum*momentumComponent +
		dDayPenalty +
		c.cfg.Weights.FTDAdjustment*ftdAdj +
		c.cfg.Weights.FearGreed*fgComponent

	entryRisk := c.cfg.EntryRisk.Momentum*(1-momentumComponent) +
		c.cfg.EntryRisk.DDay*dDayPenaltyNorm +
		c.cfg.EntryRisk.FTD*(1-ftdConfidence)
	entryRisk = stats.Clamp(entryRisk, 0, 1)

	regime := domain.RegimeBearish
	switch {
	case composite >= c.cfg.Thresholds.BullishMin:
		regime = domain.RegimeBullish
	case composite >= c.cfg.Thresholds.NeutralMin:
		regime = domain.RegimeNeutral
	}

	spyDelta := int(in.SPYDCount - in.SPYDCount5Ago)
	qqqDelta := int(in.QQQDCount - in.QQQDCount5Ago)
	trend := classifyDDayTrend(spyDelta, qqqDelta)

	rallyDay := 0
	if in.FTD.Phase == domain.PhaseRallyAttempt {
		rallyDay = in.FTD.RallyDay
	}

	return domain.MarketRegimeAlert{
		Date:            in.Date,
		CompositeScore:  composite,
		EntryRiskScore:  entryRisk,
		Regime:          regime,
		SPYDCount:       int(in.SPYDCount),
		QQQDCount:       int(in.QQQDCount),
		SPY5DayDelta:    spyDelta,
		QQQ5DayDelta:    qqqDelta,
		DDayTrend:       trend,
		MarketPhase:     in.FTD.Phase,
		RallyDay:        rallyDay,
		HasConfirmedFTD: in.FTD.HasConfirmedFTD,
		ESChangePct:     in.ESChangePct,
		NQChangePct:     in.NQChangePct,
		YMChangePct:     in.YMChangePct,
		FearGreedScore:  in.FearGreedScore,
		FearGreedRating: in.FearGreedRating,
		VIXClose:        in.VIXClose,
	}
}

// maPositioningScore rewards both indexes trading above their 50- and
// 200-day moving averages.
func (c *Calculator) maPositioningScore(spy, qqq []Bar) float64 {
	score := 0.0
	score += indexMAScore(spy)
	score += indexMAScore(qqq)
	return score / 2
}

func indexMAScore(bars []Bar) float64 {
	if len(bars) < 200 {
		return 0.5
	}
	closes := closesOf(bars)
	ma50 := stats.Mean(closes[len(closes)-50:])
	ma200 := stats.Mean(closes[len(closes)-200:])
	last := closes[len(closes)-1]
	score := 0.0
	if last > ma50 {
		score += 0.5
	}
	if last > ma200 {
		score += 0.5
	}
	return score
}

func averageChangePct(spy, qqq []Bar) float64 {
	return (changePct(spy) + changePct(qqq)) / 2
}

func changePct(bars []Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	prev := bars[len(bars)-2].Close
	last := bars[len(bars)-1].Close
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}

func closesOf(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func (c *Calculator) ftdAdjustment(s FTDState) float64 {
	switch s.Phase {
	case domain.PhaseConfirmedUptrend:
		return 1.0
	case domain.PhaseUptrendUnderPressure:
		return 0.25
	case domain.PhaseRallyAttempt:
		if s.RallyDay > 1 && s.RallyDay < 4 {
			// Days 2 and 3 of a rally attempt that has not failed are a
			// mild positive; day 1 and day 4+ without an FTD add nothing.
			// A same-day failure (checked by the caller via Advance) would
			// already have reverted the phase to CORRECTION.
			return 0.1
		}
		return 0
	default:
		return -0.5
	}
}

func classifyDDayTrend(spyDelta, qqqDelta int) domain.DDayTrend {
	sum := spyDelta + qqqDelta
	switch {
	case sum < 0:
		return domain.DDayImproving
	case sum > 0:
		return domain.DDayWorsening
	default:
		return domain.DDayFlat
	}
}
