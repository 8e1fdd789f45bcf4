package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// MAChecker evaluates moving-average support breaks: the 50-day
// warning/sell, the 21-day EMA sell, the 10-week sell, and a climax-top
// heuristic.
type MAChecker struct {
	cfg Config
}

// NewMAChecker creates an MAChecker with the given thresholds.
func NewMAChecker(cfg Config) *MAChecker { return &MAChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *MAChecker) Name() string { return "ma" }

// Check evaluates MA_50_WARNING, MA_50_SELL, EMA_21_SELL, TEN_WEEK_SELL,
// and CLIMAX_TOP.
func (c *MAChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if ctx.State < domain.StateInitial || ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	var alerts []alerting.AlertData

	if ctx.MA50 > 0 {
		if ctx.CurrentPrice < ctx.MA50 && ctx.VolumeRatio >= c.cfg.MA50SellVolumeRatio {
			alerts = append(alerts, toAlertData(ctx, "TECHNICAL", "MA_50_SELL"))
		} else {
			proximity := (ctx.CurrentPrice - ctx.MA50) / ctx.MA50 * 100
			if proximity >= 0 && proximity <= c.cfg.MA50WarningPct {
				alerts = append(alerts, toAlertData(ctx, "TECHNICAL", "MA_50_WARNING"))
			}
		}
	}

	if ctx.MA21 > 0 && ctx.CurrentPrice < ctx.MA21 && ctx.MATestCount+1 >= c.cfg.EMA21SellSessions {
		alerts = append(alerts, toAlertData(ctx, "TECHNICAL", "EMA_21_SELL"))
	}

	if ctx.MA10Week > 0 && ctx.CurrentPrice < ctx.MA10Week && ctx.VolumeRatio >= c.cfg.TenWeekSellVolumeRatio {
		alerts = append(alerts, toAlertData(ctx, "TECHNICAL", "TEN_WEEK_SELL"))
	}

	if c.isClimaxTop(ctx) {
		alerts = append(alerts, toAlertData(ctx, "TECHNICAL", "CLIMAX_TOP"))
	}

	return alerts, nil
}

// isClimaxTop flags an extreme gap-up after a prolonged run-up on a
// volume surge — the classic exhaustion-move warning sign.
func (c *MAChecker) isClimaxTop(ctx PositionContext) bool {
	if ctx.AvgCost <= 0 {
		return false
	}
	extremeRunUp := ctx.PnLPct >= 50.0
	volumeSurge := ctx.VolumeRatio >= 2.0
	return extremeRunUp && volumeSurge
}
