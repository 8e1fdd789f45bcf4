package providers

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/regime"
	"github.com/canslim/sentinel/pkg/indicators"
)

// ToRegimeBars narrows OHLCV bars to the Date/Close/Volume fields the
// distribution-day and follow-through-day detectors operate on.
func ToRegimeBars(bars []Bar) []regime.Bar {
	out := make([]regime.Bar, len(bars))
	for i, b := range bars {
		out[i] = regime.Bar{Date: b.Date, Close: b.Close, Volume: b.Volume}
	}
	return out
}

// ToIndicatorBars narrows OHLCV bars to the Close/Volume fields the
// scoring package's moving-average and volume-ratio helpers consume.
func ToIndicatorBars(bars []Bar) []indicators.Bar {
	out := make([]indicators.Bar, len(bars))
	for i, b := range bars {
		out[i] = indicators.Bar{Close: b.Close, Volume: b.Volume}
	}
	return out
}

// RegimeBarSource adapts a HistoricalBarsProvider to regime.BarSource,
// narrowing its OHLCV bars down to the Date/Close/Volume shape the regime
// calculator's distribution-day detector needs.
type RegimeBarSource struct {
	Provider HistoricalBarsProvider
}

// DailyBars satisfies regime.BarSource.
func (a RegimeBarSource) DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]regime.Bar, error) {
	bars, err := a.Provider.DailyBars(ctx, symbol, end, lookbackDays)
	if err != nil {
		return nil, err
	}
	return ToRegimeBars(bars), nil
}
