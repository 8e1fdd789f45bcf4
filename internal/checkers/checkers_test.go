package checkers

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okChecker struct{}

func (c *okChecker) Name() string { return "ok" }
func (c *okChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	return []alerting.AlertData{toAlertData(ctx, "TEST", "FIRED")}, nil
}

type panicChecker struct{}

func (c *panicChecker) Name() string { return "panicker" }
func (c *panicChecker) Check(p *domain.Position, ctx PositionContext) ([]alerting.AlertData, error) {
	panic("boom")
}

func baseCtx() PositionContext {
	return PositionContext{
		Symbol: "NVDA", PositionID: "p1", State: domain.StateInitial,
		AvgCost: 100, StopPrice: 93, TP1Target: 120, TP2Target: 125,
		CurrentPrice: 110, EntryDate: time.Now().AddDate(0, 0, -10), Now: time.Now(),
	}
}

func TestStopCheckerHardStop(t *testing.T) {
	c := NewStopChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.CurrentPrice = 92.5
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "HARD_STOP", alerts[0].AlertSubtype)
}

func TestStopCheckerWarning(t *testing.T) {
	c := NewStopChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.CurrentPrice = ctx.StopPrice * 1.01 // within 2% warn band
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "WARNING", alerts[0].AlertSubtype)
}

func TestStopCheckerNoAlertWhenSafelyAbove(t *testing.T) {
	c := NewStopChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.CurrentPrice = 150
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestStopCheckerTrailingStopOnlyPastTP1(t *testing.T) {
	c := NewStopChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.State = domain.StateFull // not yet past TP1
	ctx.CurrentPrice = 99
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	ctx.State = domain.StateTP1
	alerts, err = c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "TRAILING_STOP", alerts[0].AlertSubtype)
}

func TestProfitCheckerTP1AndTP2(t *testing.T) {
	c := NewProfitChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.CurrentPrice = 121
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "TP1", alerts[0].AlertSubtype)

	ctx.CurrentPrice = 126
	alerts, err = c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
}

func TestProfitCheckerEightWeekHold(t *testing.T) {
	c := NewProfitChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.TP1Target, ctx.TP2Target = 0, 0
	ctx.EntryDate = time.Now().AddDate(0, 0, -60)
	ctx.PnLPct = 25
	ctx.CurrentPrice = 125
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "EIGHT_WEEK_HOLD", alerts[0].AlertSubtype)
}

func TestPyramidCheckerP1ReadyAndExtended(t *testing.T) {
	c := NewPyramidChecker(DefaultConfig())
	p := &domain.Position{}
	p.SetEntryTranche(domain.Tranche1, 100, 100, time.Now())
	ctx := baseCtx()

	ctx.CurrentPrice = 103 // within 2.5-5% zone
	alerts, err := c.Check(p, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "P1_READY", alerts[0].AlertSubtype)

	ctx.CurrentPrice = 106 // above 5% zone
	alerts, err = c.Check(p, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "P1_EXTENDED", alerts[0].AlertSubtype)
}

func TestPyramidCheckerPullback(t *testing.T) {
	c := NewPyramidChecker(DefaultConfig())
	p := &domain.Position{}
	p.SetEntryTranche(domain.Tranche1, 100, 100, time.Now())
	ctx := baseCtx()
	ctx.WasExtended = true
	ctx.MA21 = 110
	ctx.CurrentPrice = 111
	ctx.VolumeRatio = 0.8

	alerts, err := c.Check(p, ctx)
	require.NoError(t, err)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "PULLBACK" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMACheckerMA50SellOnVolume(t *testing.T) {
	c := NewMAChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.MA50 = 112
	ctx.CurrentPrice = 110
	ctx.VolumeRatio = 1.5
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "MA_50_SELL" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMACheckerEMA21SellRequiresConsecutiveSessions(t *testing.T) {
	c := NewMAChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.MA21 = 115
	ctx.CurrentPrice = 110
	ctx.MATestCount = 1 // + this session = 2, below threshold of 3
	alerts, _ := c.Check(&domain.Position{}, ctx)
	for _, a := range alerts {
		assert.NotEqual(t, "EMA_21_SELL", a.AlertSubtype)
	}

	ctx.MATestCount = 2 // + this session = 3, meets threshold
	alerts, _ = c.Check(&domain.Position{}, ctx)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "EMA_21_SELL" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHealthCheckerEarningsProximity(t *testing.T) {
	c := NewHealthChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.EarningsDate = time.Now().Add(3 * 24 * time.Hour)
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "EARNINGS" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHealthCheckerLateStage(t *testing.T) {
	c := NewHealthChecker(DefaultConfig())
	p := &domain.Position{BaseStage: "3"}
	ctx := baseCtx()
	ctx.EntryDate = time.Now().AddDate(0, 0, -200)
	alerts, err := c.Check(p, ctx)
	require.NoError(t, err)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "LATE_STAGE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBreakoutCheckerConfirmed(t *testing.T) {
	c := NewBreakoutChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.State = domain.StateWatching
	ctx.Pivot = 140
	ctx.CurrentPrice = 142.5
	ctx.RVol = 2.1
	ctx.Grade = "B"
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CONFIRMED", alerts[0].AlertSubtype)
}

func TestBreakoutCheckerSuppressedInBearMarket(t *testing.T) {
	c := NewBreakoutChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.State = domain.StateWatching
	ctx.Pivot = 140
	ctx.CurrentPrice = 142.5
	ctx.RVol = 2.1
	ctx.MarketRegime = domain.RegimeBearish
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "SUPPRESSED", alerts[0].AlertSubtype)
}

func TestBreakoutCheckerCPlusGradeNotSuppressed(t *testing.T) {
	c := NewBreakoutChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.State = domain.StateWatching
	ctx.Pivot = 140
	ctx.CurrentPrice = 142.5
	ctx.RVol = 2.1
	ctx.Grade = "C+" // ranks above the "C" floor; must not be treated as a string-prefix match
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CONFIRMED", alerts[0].AlertSubtype)
}

func TestAltEntryChecker21EMABounce(t *testing.T) {
	c := NewAltEntryChecker(DefaultConfig())
	ctx := baseCtx()
	ctx.State = domain.StateWatching
	ctx.MA21 = 100
	ctx.CurrentPrice = 100.5
	ctx.VolumeRatio = 0.6
	alerts, err := c.Check(&domain.Position{}, ctx)
	require.NoError(t, err)
	found := false
	for _, a := range alerts {
		if a.AlertSubtype == "21_EMA_BOUNCE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSuiteIsolatesPanickingChecker(t *testing.T) {
	ok := &okChecker{}
	suite := NewSuite(zerolog.Nop(), &panicChecker{}, ok)
	alerts := suite.Run(&domain.Position{}, baseCtx(), time.Minute)
	require.Len(t, alerts, 1)
	assert.Equal(t, 1, suite.Errors()["panicker"])
}

func TestSuiteSuppressesDuplicatesWithinWindow(t *testing.T) {
	ok := &okChecker{}
	suite := NewSuite(zerolog.Nop(), ok)
	first := suite.Run(&domain.Position{}, baseCtx(), time.Hour)
	second := suite.Run(&domain.Position{}, baseCtx(), time.Hour)
	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestSuiteRunStatusCheckBypassesCooldown(t *testing.T) {
	ok := &okChecker{}
	suite := NewSuite(zerolog.Nop(), ok)
	first := suite.RunStatusCheck(&domain.Position{}, baseCtx())
	second := suite.RunStatusCheck(&domain.Position{}, baseCtx())
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}
