package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// PyramidChecker evaluates the first and second add-on zones, the
// extended-above-zone warnings, and the post-extension pullback re-add
// signal.
type PyramidChecker struct {
	cfg Config
}

// NewPyramidChecker creates a PyramidChecker with the given thresholds.
func NewPyramidChecker(cfg Config) *PyramidChecker { return &PyramidChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *PyramidChecker) Name() string { return "pyramid" }

// Check evaluates P1_READY/P1_EXTENDED at state 1, P2_READY/P2_EXTENDED
// at state 2, and ADD/PULLBACK for any position that was previously
// extended.
func (c *PyramidChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	var alerts []alerting.AlertData

	entryPrice := p.E1.Price
	switch ctx.State {
	case domain.StateInitial:
		if a, ok := c.zoneAlert(ctx, entryPrice, "P1_READY", "P1_EXTENDED"); ok {
			alerts = append(alerts, a)
		}
	case domain.StatePyramid1:
		base := p.E2.Price
		if base <= 0 {
			base = entryPrice
		}
		if a, ok := c.zoneAlert(ctx, base, "P2_READY", "P2_EXTENDED"); ok {
			alerts = append(alerts, a)
		}
	}

	if ctx.State >= domain.StateInitial && ctx.WasExtended {
		if a, ok := c.pullbackAlert(ctx); ok {
			alerts = append(alerts, a)
		}
	}

	return alerts, nil
}

// zoneAlert evaluates whether current price sits in, above, or below the
// add-on buy zone above base (the prior tranche's fill price).
func (c *PyramidChecker) zoneAlert(ctx PositionContext, base float64, readySubtype, extendedSubtype string) (alerting.AlertData, bool) {
	if base <= 0 {
		return alerting.AlertData{}, false
	}

	zoneLow := base * (1 + c.cfg.PyramidZoneMinPct/100)
	zoneHigh := base * (1 + c.cfg.PyramidZoneMaxPct/100)

	switch {
	case ctx.CurrentPrice > zoneHigh:
		return toAlertData(ctx, "PYRAMID", extendedSubtype), true
	case ctx.CurrentPrice >= zoneLow:
		return toAlertData(ctx, "PYRAMID", readySubtype), true
	default:
		return alerting.AlertData{}, false
	}
}

// pullbackAlert flags a retracement to the 21-EMA on supportive (below
// average) volume, as a re-add opportunity after a prior extension.
func (c *PyramidChecker) pullbackAlert(ctx PositionContext) (alerting.AlertData, bool) {
	if ctx.MA21 <= 0 {
		return alerting.AlertData{}, false
	}
	withinPullbackRange := ctx.CurrentPrice >= ctx.MA21*0.98 && ctx.CurrentPrice <= ctx.MA21*1.02
	supportiveVolume := ctx.VolumeRatio > 0 && ctx.VolumeRatio < 1.0
	if withinPullbackRange && supportiveVolume {
		return toAlertData(ctx, "ADD", "PULLBACK"), true
	}
	return alerting.AlertData{}, false
}
