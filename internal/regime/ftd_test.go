package regime

import (
	"testing"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAdvanceStartsRallyOnBottomingDay(t *testing.T) {
	cfg := DefaultConfig()
	s := NewFTDState()
	s = Advance(s, FTDInput{Close: 400, PriorClose: 395, IsBottomingDay: true}, cfg)
	assert.Equal(t, domain.PhaseRallyAttempt, s.Phase)
	assert.Equal(t, 1, s.RallyDay)
	assert.Equal(t, 400.0, s.RallyLowClose)
}

func TestAdvanceConfirmsFTDOnDayFourPlus(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseRallyAttempt, RallyDay: 3, RallyLowClose: 390}
	s = Advance(s, FTDInput{Close: 406, PriorClose: 400, Volume: 2_000_000, PriorVolume: 1_000_000}, cfg)
	assert.Equal(t, domain.PhaseConfirmedUptrend, s.Phase)
	assert.True(t, s.HasConfirmedFTD)
}

func TestAdvanceFailsRallyOnUndercut(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseRallyAttempt, RallyDay: 2, RallyLowClose: 390}
	s = Advance(s, FTDInput{Close: 385, PriorClose: 392}, cfg)
	assert.Equal(t, domain.PhaseCorrection, s.Phase)
	assert.Equal(t, 0, s.RallyDay)
}

func TestAdvanceDoesNotConfirmBelowGainThreshold(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseRallyAttempt, RallyDay: 4, RallyLowClose: 390}
	s = Advance(s, FTDInput{Close: 401, PriorClose: 400, Volume: 2_000_000, PriorVolume: 1_000_000}, cfg)
	assert.Equal(t, domain.PhaseRallyAttempt, s.Phase)
}

func TestAdvanceDowngradesToCorrectionOnHighDDayCount(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseConfirmedUptrend, HasConfirmedFTD: true}
	s = Advance(s, FTDInput{DDayCount: 6}, cfg)
	assert.Equal(t, domain.PhaseCorrection, s.Phase)
	assert.False(t, s.HasConfirmedFTD)
}

func TestAdvanceMovesToUnderPressureOnRisingDDays(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseConfirmedUptrend, HasConfirmedFTD: true}
	s = Advance(s, FTDInput{DDayCount: 4}, cfg)
	assert.Equal(t, domain.PhaseUptrendUnderPressure, s.Phase)
}

func TestAdvanceRecoversFromUnderPressure(t *testing.T) {
	cfg := DefaultConfig()
	s := FTDState{Phase: domain.PhaseUptrendUnderPressure}
	s = Advance(s, FTDInput{DDayCount: 1}, cfg)
	assert.Equal(t, domain.PhaseConfirmedUptrend, s.Phase)
}

func TestConfidenceByPhase(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1.0, Confidence(FTDState{Phase: domain.PhaseConfirmedUptrend}, cfg))
	assert.Equal(t, 0.5, Confidence(FTDState{Phase: domain.PhaseUptrendUnderPressure}, cfg))
	assert.Equal(t, 0.25, Confidence(FTDState{Phase: domain.PhaseRallyAttempt}, cfg))
	assert.Equal(t, 0.0, Confidence(FTDState{Phase: domain.PhaseCorrection}, cfg))
}
