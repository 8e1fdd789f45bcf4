package domain

import "time"

// Regime is the categorical market-posture label.
type Regime string

const (
	RegimeBullish Regime = "BULLISH"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeBearish Regime = "BEARISH"
)

// DDayTrend classifies the 5-session change in distribution-day count.
type DDayTrend string

const (
	DDayImproving DDayTrend = "IMPROVING"
	DDayWorsening DDayTrend = "WORSENING"
	DDayFlat      DDayTrend = "FLAT"
)

// MarketPhase is the follow-through-day tracker's state.
type MarketPhase string

const (
	PhaseConfirmedUptrend     MarketPhase = "CONFIRMED_UPTREND"
	PhaseUptrendUnderPressure MarketPhase = "UPTREND_UNDER_PRESSURE"
	PhaseRallyAttempt         MarketPhase = "RALLY_ATTEMPT"
	PhaseCorrection           MarketPhase = "CORRECTION"
)

// FearGreedRating is the qualitative bucket of a 0-100 fear-and-greed score.
type FearGreedRating string

const (
	FearGreedExtremeFear FearGreedRating = "EXTREME_FEAR"
	FearGreedFear        FearGreedRating = "FEAR"
	FearGreedNeutral     FearGreedRating = "NEUTRAL"
	FearGreedGreed       FearGreedRating = "GREED"
	FearGreedExtremeGreed FearGreedRating = "EXTREME_GREED"
)

// RatingForFearGreedScore buckets a 0-100 fear-and-greed score into its
// qualitative rating using the standard CNN Fear & Greed thresholds (no
// bucket boundaries were found in the retrieved original_source files,
// so the widely-used 25/45/55/75 cut points are applied here).
func RatingForFearGreedScore(score int) FearGreedRating {
	switch {
	case score < 25:
		return FearGreedExtremeFear
	case score < 45:
		return FearGreedFear
	case score < 55:
		return FearGreedNeutral
	case score < 75:
		return FearGreedGreed
	default:
		return FearGreedExtremeGreed
	}
}

// MarketRegimeAlert is the one-per-trading-date market regime snapshot.
type MarketRegimeAlert struct {
	Date time.Time `json:"date"`

	CompositeScore  float64 `json:"composite_score"`
	EntryRiskScore  float64 `json:"entry_risk_score"`
	Regime          Regime  `json:"regime"`

	SPYDCount      int       `json:"spy_d_count"`
	QQQDCount      int       `json:"qqq_d_count"`
	SPY5DayDelta   int       `json:"spy_5day_delta"`
	QQQ5DayDelta   int       `json:"qqq_5day_delta"`
	DDayTrend      DDayTrend `json:"d_day_trend"`
	MarketPhase    MarketPhase `json:"market_phase"`
	RallyDay       int       `json:"rally_day"`
	HasConfirmedFTD bool     `json:"has_confirmed_ftd"`

	ESChangePct float64 `json:"es_change_pct"`
	NQChangePct float64 `json:"nq_change_pct"`
	YMChangePct float64 `json:"ym_change_pct"`

	FearGreedScore  int             `json:"fear_greed_score"`
	FearGreedRating FearGreedRating `json:"fear_greed_rating"`
	VIXClose        float64         `json:"vix_close"`
}

// DistributionDay is a single (symbol, date) decline-on-rising-volume
// occurrence. Expires out of the rolling D-day count per the window rule
// in SPEC_FULL.md §4.6.
type DistributionDay struct {
	Date        time.Time `json:"date"`
	Symbol      string    `json:"symbol"`
	PctChange   float64   `json:"pct_change"`
	VolumeRatio float64   `json:"volume_ratio"`
	Expired     bool      `json:"expired"`
	// TriggerClose is the closing price that qualified this day, kept so
	// the rolling window can evaluate the 5%-advance expiry rule without
	// re-querying historical bars.
	TriggerClose float64 `json:"trigger_close"`
}

// Outcome is a closed-position record retained for offline learning: the
// scoring-at-entry factors alongside the realized result.
type Outcome struct {
	EntryDate time.Time `json:"entry_date"`
	ExitDate  time.Time `json:"exit_date"`

	ID         string `json:"id"`
	PositionID string `json:"position_id"`
	Symbol     string `json:"symbol"`

	RSRatingAtEntry  int     `json:"rs_rating_at_entry"`
	EPSRatingAtEntry int     `json:"eps_rating_at_entry"`
	GradeAtEntry     string  `json:"grade_at_entry"`
	ScoreAtEntry     float64 `json:"score_at_entry"`

	GrossPct    float64     `json:"gross_pct"`
	HoldingDays int         `json:"holding_days"`
	Outcome     OutcomeKind `json:"outcome"`
}

// OutcomeKind classifies a closed position's result for the learning
// subsystem.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "SUCCESS"
	OutcomePartial OutcomeKind = "PARTIAL"
	OutcomeStopped OutcomeKind = "STOPPED"
	OutcomeFailed  OutcomeKind = "FAILED"
)

// Snapshot is a point-in-time JSON payload captured by a worker for later
// offline analysis (e.g. the factors feeding a scoring or regime
// computation). Optional: nothing on the live alerting path reads these
// back.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Payload string    `json:"payload"`
}
