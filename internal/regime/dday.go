package regime

import (
	"math"
	"time"

	"github.com/canslim/sentinel/internal/domain"
)

// Bar is a single daily index observation used for D-Day detection.
type Bar struct {
	Date   time.Time
	Close  float64
	Volume float64
}

// DetectDistributionDay evaluates today against yesterday for symbol and
// returns a DistributionDay plus true if both the decline and
// volume-increase thresholds are met. Percentage comparisons are rounded
// to cfg.RoundingDecimals before comparison, matching the source
// monitor's decimal-rounding semantics.
func DetectDistributionDay(symbol string, yesterday, today Bar, cfg DDayConfig) (domain.DistributionDay, bool) {
	if yesterday.Close == 0 {
		return domain.DistributionDay{}, false
	}
	pctChange := round(((today.Close-yesterday.Close)/yesterday.Close)*100, cfg.RoundingDecimals)
	volumeRatio := 0.0
	if yesterday.Volume > 0 {
		volumeRatio = today.Volume / yesterday.Volume
	}
	volumeIncreasePct := round((volumeRatio-1)*100, cfg.RoundingDecimals)

	isDDay := pctChange <= cfg.DeclineThresholdPct && volumeIncreasePct >= cfg.MinVolumeIncreasePct
	if isDDay {
		return domain.DistributionDay{
			Date: today.Date, Symbol: symbol,
			PctChange: pctChange, VolumeRatio: volumeRatio, TriggerClose: today.Close,
		}, true
	}

	if cfg.EnableStalling {
		isStalling := math.Abs(pctChange) <= cfg.StallingMaxPctChange && volumeRatio >= cfg.StallingMinVolumeRatio
		if isStalling {
			return domain.DistributionDay{
				Date: today.Date, Symbol: symbol,
				PctChange: pctChange, VolumeRatio: volumeRatio, TriggerClose: today.Close,
			}, true
		}
	}
	return domain.DistributionDay{}, false
}

// StallingWeight returns the tally weight a D-Day record contributes:
// full weight (1.0) for a genuine distribution day, half weight when it
// was admitted only via the stalling-day predicate.
func StallingWeight(d domain.DistributionDay, cfg DDayConfig) float64 {
	if !cfg.EnableStalling {
		return 1.0
	}
	isGenuineDDay := d.PctChange <= cfg.DeclineThresholdPct
	if isGenuineDDay {
		return 1.0
	}
	return cfg.StallingWeight
}

// RollingCount sums the still-active D-Days for a symbol as of asOf,
// given trading-session index lookups (sessionsAgo returns how many
// trading sessions separate asOf from d's date) and the current price
// (used for the 5%-advance expiry rule).
func RollingCount(days []domain.DistributionDay, asOf time.Time, currentPrice float64, sessionsAgo func(time.Time) int, cfg DDayConfig) float64 {
	total := 0.0
	for _, d := range days {
		if d.Date.After(asOf) {
			continue
		}
		if sessionsAgo(d.Date) > cfg.WindowSessions {
			continue
		}
		if currentPrice > 0 && d.TriggerClose > 0 {
			if currentPrice >= d.TriggerClose*(1+cfg.ExpireOnAdvancePct/100) {
				continue
			}
		}
		total += StallingWeight(d, cfg)
	}
	return total
}

func round(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}
