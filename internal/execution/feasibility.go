// Package execution derives position sizing and liquidity risk from a
// scored setup, grounded on the threshold/classification idiom the
// teacher uses for its own trade-safety checks.
package execution

import "math"

// ADVStatus classifies average-daily-volume health.
type ADVStatus string

const (
	ADVPass    ADVStatus = "PASS"
	ADVCaution ADVStatus = "CAUTION"
	ADVFail    ADVStatus = "FAIL"
)

// SpreadStatus classifies bid/ask spread tightness.
type SpreadStatus string

const (
	SpreadTight  SpreadStatus = "TIGHT"
	SpreadNormal SpreadStatus = "NORMAL"
	SpreadWide   SpreadStatus = "WIDE"
	SpreadUnknown SpreadStatus = ""
)

// Risk is the overall execution-risk classification gating a trade.
type Risk string

const (
	RiskLow         Risk = "LOW"
	RiskModerate    Risk = "MODERATE"
	RiskHigh        Risk = "HIGH"
	RiskDoNotTrade  Risk = "DO_NOT_TRADE"
)

var gradeAllocation = map[string]float64{
	"A+": 0.50, "A": 0.50,
	"B+": 0.30, "B": 0.30,
	"C+": 0.20, "C": 0.20,
}

// Input is the data needed to size and risk-gate a candidate entry.
type Input struct {
	Grade          string
	Pivot          float64
	PortfolioValue float64
	AvgDailyVolume float64

	// Bid/Ask are optional; a zero Ask means no real-time spread data.
	Bid, Ask float64
}

// Result is the derived sizing and risk classification.
type Result struct {
	AllocationPct float64
	PositionValue float64
	SharesNeeded  int
	PctOfADV      float64

	ADVStatus    ADVStatus
	SpreadStatus SpreadStatus
	OverallRisk  Risk
}

// Evaluate derives shares-to-buy, liquidity risk, and spread rating from
// grade, pivot, average daily volume, and optional bid/ask.
func Evaluate(in Input) Result {
	alloc := gradeAllocation[in.Grade]
	positionValue := in.PortfolioValue * alloc

	var shares int
	var pctOfADV float64
	if in.Pivot > 0 {
		shares = int(math.Floor(positionValue / in.Pivot))
	}
	if in.AvgDailyVolume > 0 {
		pctOfADV = float64(shares) / in.AvgDailyVolume * 100
	}

	advStatus := classifyADV(in.AvgDailyVolume)
	spreadStatus := SpreadUnknown
	var spreadPct float64
	if in.Ask > 0 && in.Bid > 0 {
		spreadPct = (in.Ask - in.Bid) / in.Ask * 100
		spreadStatus = classifySpread(spreadPct)
	}

	risk := classifyRisk(advStatus, spreadStatus, pctOfADV, spreadPct)

	return Result{
		AllocationPct: alloc,
		PositionValue: positionValue,
		SharesNeeded:  shares,
		PctOfADV:      pctOfADV,
		ADVStatus:     advStatus,
		SpreadStatus:  spreadStatus,
		OverallRisk:   risk,
	}
}

func classifyADV(adv float64) ADVStatus {
	switch {
	case adv >= 500_000:
		return ADVPass
	case adv >= 400_000:
		return ADVCaution
	default:
		return ADVFail
	}
}

func classifySpread(spreadPct float64) SpreadStatus {
	switch {
	case spreadPct <= 0.10:
		return SpreadTight
	case spreadPct <= 0.30:
		return SpreadNormal
	default:
		return SpreadWide
	}
}

// classifyRisk escalates to HIGH on either a sizing-driven signal (>2% of
// ADV) or a spread of >=1.0%, independent of the TIGHT/NORMAL/WIDE display
// bucket spreadPct falls into — a wide-but-sub-1% spread must not trip it.
func classifyRisk(adv ADVStatus, spread SpreadStatus, pctOfADV, spreadPct float64) Risk {
	if adv == ADVFail || pctOfADV > 5 {
		return RiskDoNotTrade
	}
	if pctOfADV > 2 || spreadPct >= 1.0 {
		return RiskHigh
	}
	if pctOfADV > 1 || adv == ADVCaution {
		return RiskModerate
	}
	return RiskLow
}
