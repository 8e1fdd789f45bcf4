package checkers

import (
	"strconv"
	"strings"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// HealthChecker evaluates the composite health score, upcoming earnings
// risk, and late-stage-base holding risk.
type HealthChecker struct {
	cfg Config
}

// NewHealthChecker creates a HealthChecker with the given thresholds.
func NewHealthChecker(cfg Config) *HealthChecker { return &HealthChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *HealthChecker) Name() string { return "health" }

// Check evaluates HEALTH/CRITICAL, HEALTH/EARNINGS, and
// HEALTH/LATE_STAGE.
func (c *HealthChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.State < domain.StateInitial {
		return nil, nil
	}

	var alerts []alerting.AlertData

	if score := compositeHealthScore(ctx); score < c.cfg.HealthCriticalScore {
		alerts = append(alerts, toAlertData(ctx, "HEALTH", "CRITICAL"))
	}

	if !ctx.EarningsDate.IsZero() {
		daysToEarnings := int(ctx.EarningsDate.Sub(ctx.Now).Hours() / 24)
		if daysToEarnings >= 0 && daysToEarnings <= c.cfg.EarningsCriticalDays {
			alerts = append(alerts, toAlertData(ctx, "HEALTH", "EARNINGS"))
		} else if daysToEarnings > c.cfg.EarningsCriticalDays && daysToEarnings <= c.cfg.EarningsCautionDays {
			alerts = append(alerts, toAlertData(ctx, "HEALTH", "EARNINGS"))
		}
	}

	if baseStageNumber(p.BaseStage) >= c.cfg.LateStageMinBaseStage && !ctx.EntryDate.IsZero() {
		daysHeld := int(ctx.Now.Sub(ctx.EntryDate).Hours() / 24)
		if daysHeld > c.cfg.LateStageMaxHoldDays {
			alerts = append(alerts, toAlertData(ctx, "HEALTH", "LATE_STAGE"))
		}
	}

	return alerts, nil
}

// compositeHealthScore aggregates PnL, the moving-average stack, and
// relative volume into a single 0-100 health reading: a position
// trading below its key averages on weak volume and underwater scores
// low even if no single rule has fired yet.
func compositeHealthScore(ctx PositionContext) float64 {
	score := 50.0

	if ctx.PnLPct >= 0 {
		score += min(ctx.PnLPct, 30)
	} else {
		score += max(ctx.PnLPct, -40)
	}

	stacked := 0
	if ctx.MA21 > 0 && ctx.CurrentPrice > ctx.MA21 {
		stacked++
	}
	if ctx.MA50 > 0 && ctx.CurrentPrice > ctx.MA50 {
		stacked++
	}
	if ctx.MA200 > 0 && ctx.CurrentPrice > ctx.MA200 {
		stacked++
	}
	score += float64(stacked) * 5

	if ctx.VolumeRatio > 0 && ctx.VolumeRatio < 0.7 {
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// baseStageNumber extracts the leading digit from a base-stage label
// like "2", "3(3)" or "2b", defaulting to stage 1 (best odds) when
// unparseable, matching the convention the scorer's stage table follows.
func baseStageNumber(stage string) int {
	lower := strings.ToLower(strings.TrimSpace(stage))
	if idx := strings.Index(lower, "("); idx >= 0 {
		lower = lower[:idx]
	}
	digits := strings.TrimFunc(lower, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 1
	}
	return n
}
