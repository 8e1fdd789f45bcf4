// Package indicators computes the technical indicators checkers and the
// scorer need from a series of daily bars: simple/exponential moving
// averages, a weekly 10-week moving average, and up/down-volume ratios.
package indicators

import (
	"github.com/markcheno/go-talib"
)

// Bar is a single daily close/volume observation, ordered oldest to newest.
type Bar struct {
	Close  float64
	Volume float64
}

// closes extracts the close series from a bar slice.
func closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// volumes extracts the volume series from a bar slice.
func volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// SMA returns the simple moving average series for the given period; the
// returned slice is the same length as bars, with NaN for the warm-up.
func SMA(bars []Bar, period int) []float64 {
	return talib.Sma(closes(bars), period)
}

// EMA returns the exponential moving average series for the given period.
func EMA(bars []Bar, period int) []float64 {
	return talib.Ema(closes(bars), period)
}

// Last returns the final (most recent) value of a talib output series, or
// 0 if the series is empty or still warming up (NaN).
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if v != v { // NaN check without importing math for one comparison
		return 0
	}
	return v
}

// WeeklyBars collapses daily bars into consecutive weekLen-bar chunks,
// counted from the oldest bar, each carrying the chunk's last close and
// summed volume; chunks are not aligned to calendar weeks. weekLen
// defaults to 5 bars.
func WeeklyBars(bars []Bar, weekLen int) []Bar {
	if weekLen <= 0 {
		weekLen = 5
	}
	var weekly []Bar
	for i := 0; i < len(bars); i += weekLen {
		end := i + weekLen
		if end > len(bars) {
			end = len(bars)
		}
		chunk := bars[i:end]
		vol := 0.0
		for _, b := range chunk {
			vol += b.Volume
		}
		weekly = append(weekly, Bar{Close: chunk[len(chunk)-1].Close, Volume: vol})
	}
	return weekly
}

// TenWeekMA returns the 10-week simple moving average of the weekly close
// series derived from daily bars.
func TenWeekMA(bars []Bar) float64 {
	weekly := WeeklyBars(bars, 5)
	if len(weekly) < 10 {
		return 0
	}
	return Last(SMA(weekly, 10))
}

// UpDownVolumeRatio counts above-average-volume up-days versus down-days
// over the trailing window (default last `window` bars) and returns the
// ratio of up-volume-day count to down-volume-day count. A pure down
// count of zero returns a large sentinel ratio rather than dividing by
// zero, signalling "entirely accumulation".
func UpDownVolumeRatio(bars []Bar, window int) float64 {
	if window <= 0 || window > len(bars) {
		window = len(bars)
	}
	if window < 2 {
		return 1.0
	}
	recent := bars[len(bars)-window:]
	avgVol := 0.0
	for _, b := range recent {
		avgVol += b.Volume
	}
	avgVol /= float64(len(recent))

	var upDays, downDays int
	for i := 1; i < len(recent); i++ {
		if recent[i].Volume < avgVol {
			continue
		}
		if recent[i].Close > recent[i-1].Close {
			upDays++
		} else if recent[i].Close < recent[i-1].Close {
			downDays++
		}
	}
	if downDays == 0 {
		if upDays == 0 {
			return 1.0
		}
		return 5.0
	}
	return float64(upDays) / float64(downDays)
}

// VolumeDryUpRatio compares the average volume of the most recent `recent`
// bars against the average volume of the `base` bars preceding them.
func VolumeDryUpRatio(bars []Bar, recent, base int) float64 {
	if recent <= 0 || base <= 0 || recent+base > len(bars) {
		return 1.0
	}
	recentBars := bars[len(bars)-recent:]
	baseBars := bars[len(bars)-recent-base : len(bars)-recent]

	recentAvg := avgVolume(recentBars)
	baseAvg := avgVolume(baseBars)
	if baseAvg == 0 {
		return 1.0
	}
	return recentAvg / baseAvg
}

func avgVolume(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range bars {
		total += b.Volume
	}
	return total / float64(len(bars))
}
