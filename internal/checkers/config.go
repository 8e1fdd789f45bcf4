package checkers

import "github.com/canslim/sentinel/internal/repository"

// Config holds the tunable thresholds the checker suite evaluates
// against. Defaults match SPEC_FULL.md §4.8; every field is overridable
// from the settings table the same way the rest of the engine's
// tunables are, via LoadConfig.
type Config struct {
	StopWarnPct   float64 // WARNING fires within this % above stop_price
	TrailingStopPct float64 // trail_pct: running_high*(1-TrailingStopPct/100) term of the TRAILING_STOP floor

	EightWeekHoldMinGainPct float64 // EIGHT_WEEK_HOLD gain threshold

	PyramidZoneMinPct float64 // add-on zone lower bound above entry price
	PyramidZoneMaxPct float64 // add-on zone upper (extended) bound above entry price

	MA50WarningPct        float64 // MA_50_WARNING proximity threshold
	MA50SellVolumeRatio   float64 // "above-average volume" floor for MA_50_SELL
	EMA21SellSessions     int     // consecutive closes below MA21 required
	TenWeekSellVolumeRatio float64

	HealthCriticalScore float64 // composite health score floor for HEALTH/CRITICAL
	EarningsCriticalDays int    // days-to-earnings for HEALTH/EARNINGS critical
	EarningsCautionDays  int    // days-to-earnings for HEALTH/EARNINGS caution
	LateStageMinBaseStage int   // base stage at/above which LATE_STAGE can fire
	LateStageMaxHoldDays  int   // normal holding horizon before LATE_STAGE fires

	BreakoutApproachingPct   float64 // within this % below pivot counts as approaching
	BreakoutVolumeConfirmation float64 // rvol floor for CONFIRMED
	BreakoutBuyZonePct       float64 // pivot*(1+pct) upper bound of the buy zone
}

// DefaultConfig returns the checker thresholds named explicitly in
// SPEC_FULL.md §4.8 (warn_pct ~2%, trailing floor, add-on zones ~2-3%
// above entry and ~5% extended cutoff, earnings critical<=5d/caution<=10d).
func DefaultConfig() Config {
	return Config{
		StopWarnPct:     2.0,
		TrailingStopPct: 10.0,

		EightWeekHoldMinGainPct: 20.0,

		PyramidZoneMinPct: 2.5,
		PyramidZoneMaxPct: 5.0,

		MA50WarningPct:         2.0,
		MA50SellVolumeRatio:    1.0,
		EMA21SellSessions:      3,
		TenWeekSellVolumeRatio: 1.0,

		HealthCriticalScore:   40.0,
		EarningsCriticalDays:  5,
		EarningsCautionDays:   10,
		LateStageMinBaseStage: 3,
		LateStageMaxHoldDays:  180,

		BreakoutApproachingPct:     2.0,
		BreakoutVolumeConfirmation: 1.4,
		BreakoutBuyZonePct:         5.0,
	}
}

// LoadConfig overlays DefaultConfig with any "checkers.*" overrides found
// in the settings table, following the same settings-override-env
// precedence the rest of the engine uses.
func LoadConfig(settings *repository.SettingsRepository) (Config, error) {
	cfg := DefaultConfig()

	floats := []struct {
		key string
		dst *float64
	}{
		{"checkers.stop_warn_pct", &cfg.StopWarnPct},
		{"checkers.trailing_stop_pct", &cfg.TrailingStopPct},
		{"checkers.eight_week_hold_min_gain_pct", &cfg.EightWeekHoldMinGainPct},
		{"checkers.pyramid_zone_min_pct", &cfg.PyramidZoneMinPct},
		{"checkers.pyramid_zone_max_pct", &cfg.PyramidZoneMaxPct},
		{"checkers.ma50_warning_pct", &cfg.MA50WarningPct},
		{"checkers.ma50_sell_volume_ratio", &cfg.MA50SellVolumeRatio},
		{"checkers.ten_week_sell_volume_ratio", &cfg.TenWeekSellVolumeRatio},
		{"checkers.health_critical_score", &cfg.HealthCriticalScore},
		{"checkers.breakout_approaching_pct", &cfg.BreakoutApproachingPct},
		{"checkers.breakout_volume_confirmation", &cfg.BreakoutVolumeConfirmation},
		{"checkers.breakout_buy_zone_pct", &cfg.BreakoutBuyZonePct},
	}
	for _, f := range floats {
		v, err := settings.GetFloat(f.key, *f.dst)
		if err != nil {
			return Config{}, err
		}
		*f.dst = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"checkers.ema21_sell_sessions", &cfg.EMA21SellSessions},
		{"checkers.earnings_critical_days", &cfg.EarningsCriticalDays},
		{"checkers.earnings_caution_days", &cfg.EarningsCautionDays},
		{"checkers.late_stage_min_base_stage", &cfg.LateStageMinBaseStage},
		{"checkers.late_stage_max_hold_days", &cfg.LateStageMaxHoldDays},
	}
	for _, f := range ints {
		v, err := settings.GetInt(f.key, *f.dst)
		if err != nil {
			return Config{}, err
		}
		*f.dst = v
	}

	return cfg, nil
}
