package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// StopChecker evaluates the hard-stop, pre-stop warning, and trailing
// stop rules for a position already past state 0.
type StopChecker struct {
	cfg Config
}

// NewStopChecker creates a StopChecker with the given thresholds.
func NewStopChecker(cfg Config) *StopChecker { return &StopChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *StopChecker) Name() string { return "stop" }

// Check evaluates HARD_STOP, WARNING, and (once past TP1) TRAILING_STOP.
func (c *StopChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.State < domain.StateInitial || ctx.StopPrice <= 0 || ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	var alerts []alerting.AlertData

	if ctx.CurrentPrice <= ctx.StopPrice {
		alerts = append(alerts, toAlertData(ctx, "STOP", "HARD_STOP"))
		return alerts, nil // hard stop supersedes the warning/trailing checks this cycle
	}

	warnLevel := ctx.StopPrice * (1 + c.cfg.StopWarnPct/100)
	if ctx.CurrentPrice <= warnLevel {
		alerts = append(alerts, toAlertData(ctx, "STOP", "WARNING"))
	}

	if ctx.State >= domain.StateTP1 {
		trailing := c.trailingLevel(ctx)
		if trailing > 0 && ctx.CurrentPrice <= trailing {
			alerts = append(alerts, toAlertData(ctx, "STOP", "TRAILING_STOP"))
		}
	}

	return alerts, nil
}

// trailingLevel computes the trailing-stop floor per spec.md §9's pinned
// formula: trailing_stop = max(stop_price, avg_cost*1.10, running_high*(1-trail_pct)).
// Each term only grows as stop_price/running_high ratchet up, so the
// floor itself never moves down.
func (c *StopChecker) trailingLevel(ctx PositionContext) float64 {
	if ctx.AvgCost <= 0 {
		return 0
	}
	level := ctx.StopPrice
	if costFloor := ctx.AvgCost * 1.10; costFloor > level {
		level = costFloor
	}
	if ctx.RunningHigh > 0 {
		if highFloor := ctx.RunningHigh * (1 - c.cfg.TrailingStopPct/100); highFloor > level {
			level = highFloor
		}
	}
	return level
}
