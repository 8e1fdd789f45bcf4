package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// ProfitChecker evaluates take-profit targets and the eight-week hold
// signal.
type ProfitChecker struct {
	cfg Config
}

// NewProfitChecker creates a ProfitChecker with the given thresholds.
func NewProfitChecker(cfg Config) *ProfitChecker { return &ProfitChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *ProfitChecker) Name() string { return "profit" }

// Check evaluates TP1, TP2, and EIGHT_WEEK_HOLD.
func (c *ProfitChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.State < domain.StateInitial || ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	var alerts []alerting.AlertData

	if ctx.TP1Target > 0 && ctx.CurrentPrice >= ctx.TP1Target && ctx.State < domain.StateTP1 {
		alerts = append(alerts, toAlertData(ctx, "PROFIT", "TP1"))
	}
	if ctx.TP2Target > 0 && ctx.CurrentPrice >= ctx.TP2Target && ctx.State < domain.StateTP2 {
		alerts = append(alerts, toAlertData(ctx, "PROFIT", "TP2"))
	}

	if !ctx.EntryDate.IsZero() {
		weeksHeld := ctx.Now.Sub(ctx.EntryDate).Hours() / (24 * 7)
		if weeksHeld >= 8 && ctx.PnLPct >= c.cfg.EightWeekHoldMinGainPct {
			alerts = append(alerts, toAlertData(ctx, "PROFIT", "EIGHT_WEEK_HOLD"))
		}
	}

	return alerts, nil
}
