package regime

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func flatBars(n int, close float64) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Close: close, Volume: 1_000_000, Date: time.Now().AddDate(0, 0, i-n)}
	}
	return bars
}

func TestComputeDeterministic(t *testing.T) {
	calc := New(DefaultConfig())
	in := Inputs{
		Date:          time.Now(),
		SPYBars:       flatBars(210, 500),
		QQQBars:       flatBars(210, 400),
		SPYDCount:     2,
		QQQDCount:     2,
		SPYDCount5Ago: 0,
		QQQDCount5Ago: 0,
		FTD:           NewFTDState(),
		ESChangePct:   0.5,
	}
	a1 := calc.Compute(in)
	a2 := calc.Compute(in)
	assert.Equal(t, a1.CompositeScore, a2.CompositeScore)
	assert.Equal(t, a1.Regime, a2.Regime)
	assert.Equal(t, a1.EntryRiskScore, a2.EntryRiskScore)
}

func TestComputeBearishScenario(t *testing.T) {
	// S4: SPY 5-day delta +2 D-days (WORSENING), max(d_count)=6, futures
	// ES -1.0%, fear-and-greed 18.
	calc := New(DefaultConfig())
	decliningSPY := flatBars(210, 500)
	decliningSPY[len(decliningSPY)-1].Close = 490 // recent down day
	in := Inputs{
		Date:            time.Now(),
		SPYBars:         decliningSPY,
		QQQBars:         flatBars(210, 400),
		SPYDCount:       6,
		QQQDCount:       4,
		SPYDCount5Ago:   4,
		QQQDCount5Ago:   4,
		FTD:             FTDState{Phase: "CORRECTION"},
		ESChangePct:     -1.0,
		HasFearGreed:    true,
		FearGreedScore:  18,
		FearGreedRating: domain.FearGreedExtremeFear,
	}
	alert := calc.Compute(in)
	assert.Less(t, alert.CompositeScore, 0.5)
	assert.Equal(t, "BEARISH", string(alert.Regime))
	assert.Equal(t, "WORSENING", string(alert.DDayTrend))
}
