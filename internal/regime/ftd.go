package regime

import "github.com/canslim/sentinel/internal/domain"

// FTDState is the follow-through-day tracker's persisted state, carried
// across daily evaluations.
type FTDState struct {
	Phase           domain.MarketPhase
	RallyDay        int     // 0 when not in a rally attempt
	RallyLowClose   float64 // close of rally day 1, the level a failed rally undercuts
	HasConfirmedFTD bool
}

// NewFTDState starts in CORRECTION, the conservative default until the
// first rally attempt is observed.
func NewFTDState() FTDState {
	return FTDState{Phase: domain.PhaseCorrection}
}

// FTDInput is one day's index observation feeding the tracker.
type FTDInput struct {
	Close         float64
	PriorClose    float64
	Volume        float64
	PriorVolume   float64
	DDayCount     int
	IsBottomingDay bool // a strong reversal-style day off a low, starting a rally attempt
}

// Advance evolves the FTD state machine by one trading day and returns
// the updated state. Phase transitions:
//   - CORRECTION → RALLY_ATTEMPT on a bottoming day (day 1 of the rally).
//   - RALLY_ATTEMPT → CONFIRMED_UPTREND when day 4+ of the rally gains
//     ≥ cfg.FTDMinIndexGainPct on above-prior-day volume (a confirmed FTD).
//   - RALLY_ATTEMPT → CORRECTION if price undercuts the rally's day-1 low.
//   - CONFIRMED_UPTREND → UPTREND_UNDER_PRESSURE → CORRECTION as the D-Day
//     count rises past cfg.CorrectionDDayThreshold.
func Advance(s FTDState, in FTDInput, cfg Config) FTDState {
	switch s.Phase {
	case domain.PhaseCorrection:
		if in.IsBottomingDay {
			s.Phase = domain.PhaseRallyAttempt
			s.RallyDay = 1
			s.RallyLowClose = in.Close
			s.HasConfirmedFTD = false
		}
		return s

	case domain.PhaseRallyAttempt:
		s.RallyDay++
		if in.Close < s.RallyLowClose {
			s.Phase = domain.PhaseCorrection
			s.RallyDay = 0
			return s
		}
		gainPct := 0.0
		if in.PriorClose > 0 {
			gainPct = (in.Close - in.PriorClose) / in.PriorClose * 100
		}
		aboveAvgVolume := in.Volume > in.PriorVolume
		if s.RallyDay >= 4 && gainPct >= cfg.FTDMinIndexGainPct && aboveAvgVolume {
			s.Phase = domain.PhaseConfirmedUptrend
			s.HasConfirmedFTD = true
		}
		return s

	case domain.PhaseConfirmedUptrend:
		if in.DDayCount >= cfg.CorrectionDDayThreshold {
			s.Phase = domain.PhaseCorrection
			s.HasConfirmedFTD = false
			s.RallyDay = 0
			return s
		}
		if in.DDayCount >= cfg.CorrectionDDayThreshold-2 {
			s.Phase = domain.PhaseUptrendUnderPressure
		}
		return s

	case domain.PhaseUptrendUnderPressure:
		if in.DDayCount >= cfg.CorrectionDDayThreshold {
			s.Phase = domain.PhaseCorrection
			s.HasConfirmedFTD = false
			s.RallyDay = 0
			return s
		}
		if in.DDayCount <= 2 {
			s.Phase = domain.PhaseConfirmedUptrend
		}
		return s

	default:
		return s
	}
}

// Confidence returns a [0,1] measure of how much to trust the current
// FTD state as a bullish signal: full confidence in a fresh confirmed
// uptrend, decaying as subsequent D-Days accrue, none in correction.
func Confidence(s FTDState, cfg Config) float64 {
	switch s.Phase {
	case domain.PhaseConfirmedUptrend:
		return 1.0
	case domain.PhaseUptrendUnderPressure:
		return 0.5
	case domain.PhaseRallyAttempt:
		return 0.25
	default:
		return 0.0
	}
}
