package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/scoring"
)

// gradeFloorDefault is the minimum entry grade a watchlist item needs for
// BreakoutChecker to confirm rather than suppress a breakout. Compared
// via scoring.GradeRank, not raw string order — "C" is a string prefix
// of "C+", so string comparison does not follow grade order.
const gradeFloorDefault = "C"

// BreakoutChecker evaluates watchlist items (state 0) against their
// pivot.
type BreakoutChecker struct {
	cfg        Config
	gradeFloor string
}

// NewBreakoutChecker creates a BreakoutChecker with the given thresholds.
func NewBreakoutChecker(cfg Config) *BreakoutChecker {
	return &BreakoutChecker{cfg: cfg, gradeFloor: gradeFloorDefault}
}

// Name identifies this checker for health counters and logs.
func (c *BreakoutChecker) Name() string { return "breakout" }

// Check evaluates APPROACHING, CONFIRMED, IN_BUY_ZONE, EXTENDED, and
// SUPPRESSED. Only state-0 positions with a pivot set are eligible.
func (c *BreakoutChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.State != domain.StateWatching || ctx.Pivot <= 0 || ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	buyZoneHigh := ctx.Pivot * (1 + c.cfg.BreakoutBuyZonePct/100)
	approachLow := ctx.Pivot * (1 - c.cfg.BreakoutApproachingPct/100)

	confirmed := ctx.CurrentPrice > ctx.Pivot && ctx.RVol >= c.cfg.BreakoutVolumeConfirmation
	suppressed := confirmed && c.isSuppressed(ctx)

	switch {
	case suppressed:
		return []alerting.AlertData{toAlertData(ctx, "BREAKOUT", "SUPPRESSED")}, nil
	case confirmed:
		return []alerting.AlertData{toAlertData(ctx, "BREAKOUT", "CONFIRMED")}, nil
	case ctx.CurrentPrice > buyZoneHigh:
		return []alerting.AlertData{toAlertData(ctx, "BREAKOUT", "EXTENDED")}, nil
	case ctx.CurrentPrice >= ctx.Pivot:
		return []alerting.AlertData{toAlertData(ctx, "BREAKOUT", "IN_BUY_ZONE")}, nil
	case ctx.CurrentPrice >= approachLow:
		return []alerting.AlertData{toAlertData(ctx, "BREAKOUT", "APPROACHING")}, nil
	default:
		return nil, nil
	}
}

// isSuppressed checks whether the market regime or the item's grade
// floor should hold back an otherwise-confirmed breakout signal.
func (c *BreakoutChecker) isSuppressed(ctx PositionContext) bool {
	if ctx.MarketRegime == domain.RegimeBearish {
		return true
	}
	if ctx.Grade == "" {
		return false
	}
	return scoring.GradeRank(ctx.Grade) > scoring.GradeRank(c.gradeFloor)
}
