// Package regime computes the daily market-regime signal from
// distribution-day tracking, follow-through-day state, overnight futures
// bias, and sentiment, producing a composite score, an entry-risk score,
// and a categorical BULLISH/NEUTRAL/BEARISH regime.
package regime

// DDayConfig controls distribution-day detection and the stalling-day
// supplemental predicate.
type DDayConfig struct {
	DeclineThresholdPct    float64 // e.g. -0.2 means close must be ≤ -0.2%
	MinVolumeIncreasePct   float64 // e.g. 2.0 means volume must be ≥ +2%
	RoundingDecimals       int
	WindowSessions         int // rolling D-day window, default 25
	ExpireOnAdvancePct     float64 // price advance past triggering close that expires a D-day, default 5

	EnableStalling         bool
	StallingMaxPctChange   float64 // default 0.2
	StallingMinVolumeRatio float64 // default 1.0
	StallingWeight         float64 // default 0.5
}

// CompositeWeights are the weighted contributions into the composite
// score and, with a distinct weight vector, the entry-risk score.
type CompositeWeights struct {
	MAPositioning float64
	Momentum      float64
	DDayPenalty   float64
	FTDAdjustment float64
	FearGreed     float64
}

// EntryRiskWeights are the three independently-weighted components of
// entry_risk_score, per the pinned open-question resolution.
type EntryRiskWeights struct {
	Momentum float64 // weight on (1 − momentum_component)
	DDay     float64 // weight on dDayPenaltyNorm
	FTD      float64 // weight on (1 − ftdConfidence)
}

// Thresholds bucket the composite score into a categorical Regime.
type Thresholds struct {
	BullishMin float64 // composite_score ≥ this → BULLISH
	NeutralMin float64 // composite_score ≥ this → NEUTRAL, else BEARISH
}

// Config is the full RegimeCalculator rule table.
type Config struct {
	DDay       DDayConfig
	Weights    CompositeWeights
	EntryRisk  EntryRiskWeights
	Thresholds Thresholds

	// CorrectionDDayThreshold is the D-day count at or above which a
	// CORRECTION phase begins (typically 6).
	CorrectionDDayThreshold int
	// FTDMinIndexGainPct is the minimum index gain (default 1.5%) an FTD
	// candidate day needs, on above-prior-day volume, day 4+ of a rally.
	FTDMinIndexGainPct float64
}

// DefaultConfig mirrors the values spec.md §4.6 calls out as defaults.
func DefaultConfig() Config {
	return Config{
		DDay: DDayConfig{
			DeclineThresholdPct:  -0.2,
			MinVolumeIncreasePct: 2.0,
			RoundingDecimals:     2,
			WindowSessions:       25,
			ExpireOnAdvancePct:   5.0,

			EnableStalling:         false,
			StallingMaxPctChange:   0.2,
			StallingMinVolumeRatio: 1.0,
			StallingWeight:         0.5,
		},
		Weights: CompositeWeights{
			MAPositioning: 0.30,
			Momentum:      0.30,
			DDayPenalty:   0.05, // k in −k × max(d_count)
			FTDAdjustment: 0.15,
			FearGreed:     0.10,
		},
		EntryRisk: EntryRiskWeights{
			Momentum: 0.5,
			DDay:     0.3,
			FTD:      0.2,
		},
		Thresholds: Thresholds{
			BullishMin: 0.8,
			NeutralMin: 0.5,
		},
		CorrectionDDayThreshold: 6,
		FTDMinIndexGainPct:      1.5,
	}
}
