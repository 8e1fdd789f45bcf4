package checkers

import (
	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
)

// AltEntryChecker flags alternate-entry opportunities for watchlist
// items (state 0) and positions sitting in the re-entry watch state
// (-1.5): a bounce off the 21-EMA or 50-day MA, or a retest of the
// original pivot after a prior extension.
type AltEntryChecker struct {
	cfg Config
}

// NewAltEntryChecker creates an AltEntryChecker with the given
// thresholds.
func NewAltEntryChecker(cfg Config) *AltEntryChecker { return &AltEntryChecker{cfg: cfg} }

// Name identifies this checker for health counters and logs.
func (c *AltEntryChecker) Name() string { return "alt_entry" }

// Check evaluates 21_EMA_BOUNCE, 50_MA_BOUNCE, and
// PIVOT_RETEST_AFTER_EXTENSION.
func (c *AltEntryChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	if (ctx.State != domain.StateWatching && ctx.State != domain.StateWatchingExited) || ctx.CurrentPrice <= 0 {
		return nil, nil
	}

	var alerts []alerting.AlertData

	if bounceOffLevel(ctx.CurrentPrice, ctx.MA21, ctx.VolumeRatio) {
		alerts = append(alerts, toAlertData(ctx, "ALT_ENTRY", "21_EMA_BOUNCE"))
	}
	if bounceOffLevel(ctx.CurrentPrice, ctx.MA50, ctx.VolumeRatio) {
		alerts = append(alerts, toAlertData(ctx, "ALT_ENTRY", "50_MA_BOUNCE"))
	}

	if ctx.OriginalPivot > 0 && ctx.WasExtended {
		low := ctx.OriginalPivot * 0.98
		high := ctx.OriginalPivot * 1.02
		if ctx.CurrentPrice >= low && ctx.CurrentPrice <= high {
			alerts = append(alerts, toAlertData(ctx, "ALT_ENTRY", "PIVOT_RETEST_AFTER_EXTENSION"))
		}
	}

	return alerts, nil
}

// bounceOffLevel reports whether price sits just above a moving average
// on supportive (below-average) volume — the classic bounce setup.
func bounceOffLevel(price, level, volumeRatio float64) bool {
	if level <= 0 {
		return false
	}
	withinRange := price >= level && price <= level*1.02
	supportiveVolume := volumeRatio > 0 && volumeRatio < 1.0
	return withinRange && supportiveVolume
}
