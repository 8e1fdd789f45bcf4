// Package stats wraps gonum statistics primitives used by the scorer (RS
// trend regression) and the regime calculator (momentum saturation,
// distribution-day aggregates).
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TrendDirection classifies the sign and magnitude of a regression slope.
type TrendDirection string

const (
	TrendNewHigh TrendDirection = "at_new_high"
	TrendRising  TrendDirection = "rising"
	TrendFlat    TrendDirection = "flat"
	TrendFalling TrendDirection = "falling"
)

// LinearSlope fits y = alpha + beta*x over equally spaced x values
// (0..n-1) and returns beta, the per-step slope.
func LinearSlope(y []float64) float64 {
	if len(y) < 2 {
		return 0
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// ClassifyTrend buckets a normalized slope (slope divided by the series
// mean, so it is comparable across price levels) plus a new-high flag
// into the four RS-trend categories the scorer uses.
func ClassifyTrend(normalizedSlope float64, atNewHigh bool) TrendDirection {
	switch {
	case atNewHigh:
		return TrendNewHigh
	case normalizedSlope > 0.001:
		return TrendRising
	case normalizedSlope < -0.001:
		return TrendFalling
	default:
		return TrendFlat
	}
}

// Mean returns the arithmetic mean of a series, or 0 for an empty series.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Saturate linearly maps x from [lo, hi] to [0, 1], clamping outside the
// range. Used to turn an unbounded momentum percentage into a bounded
// composite-score contribution.
func Saturate(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	v := (x - lo) / (hi - lo)
	return math.Max(0, math.Min(1, v))
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
