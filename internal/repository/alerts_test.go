package repository

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlert(symbol, alertType, subtype string) *domain.Alert {
	return &domain.Alert{
		ID:           symbol + "-" + alertType + "-" + subtype,
		Symbol:       symbol,
		AlertType:    alertType,
		AlertSubtype: subtype,
		Severity:     domain.SeverityFor(alertType, subtype),
		Price:        100.0,
		StateAtAlert: domain.StateInitial,
	}
}

func TestAlertCreateAndGetLatestForPosition(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t), testLogger())
	a := newAlert("AAPL", "STOP", "HARD_STOP")
	a.PositionID = "pos-1"
	require.NoError(t, repo.Create(a))

	latest, err := repo.GetLatestForPosition("pos-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "AAPL", latest.Symbol)
	assert.Equal(t, domain.SeverityCritical, latest.Severity)
}

func TestAlertGetLatestForPositionNoneFound(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t), testLogger())
	latest, err := repo.GetLatestForPosition("missing")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestAlertCheckCooldown(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t), testLogger())
	a := newAlert("MSFT", "PROFIT", "TP1")
	require.NoError(t, repo.Create(a))

	withinCooldown, err := repo.CheckCooldown("MSFT", "PROFIT", "TP1", time.Hour)
	require.NoError(t, err)
	assert.True(t, withinCooldown)

	outsideCooldown, err := repo.CheckCooldown("MSFT", "PROFIT", "TP1", time.Nanosecond)
	require.NoError(t, err)
	assert.False(t, outsideCooldown)

	differentSubtype, err := repo.CheckCooldown("MSFT", "PROFIT", "TP2", time.Hour)
	require.NoError(t, err)
	assert.False(t, differentSubtype)
}

func TestAlertMarkSentAndAcknowledge(t *testing.T) {
	db := newTestDB(t)
	repo := NewAlertRepository(db, testLogger())
	a := newAlert("NVDA", "BREAKOUT", "CONFIRMED")
	require.NoError(t, repo.Create(a))

	require.NoError(t, repo.MarkSent(a.ID, "discord", time.Now()))
	require.NoError(t, repo.Acknowledge(a.ID))

	latest, err := repo.GetLatestForPosition("")
	require.NoError(t, err)
	assert.Nil(t, latest, "empty position id should not match any row")

	var notifyChannel string
	var acknowledged bool
	require.NoError(t, db.QueryRow(
		"SELECT notify_channel, acknowledged FROM alerts WHERE id = ?", a.ID,
	).Scan(&notifyChannel, &acknowledged))
	assert.Equal(t, "discord", notifyChannel)
	assert.True(t, acknowledged)
}

func TestAlertGetLatestForSymbols(t *testing.T) {
	repo := NewAlertRepository(newTestDB(t), testLogger())

	older := newAlert("TSLA", "PYRAMID", "P1_READY")
	older.AlertTime = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(older))

	newer := newAlert("TSLA", "PYRAMID", "P1_EXTENDED")
	newer.AlertTime = time.Now()
	require.NoError(t, repo.Create(newer))

	other := newAlert("AMD", "HEALTH", "CRITICAL")
	require.NoError(t, repo.Create(other))

	latest, err := repo.GetLatestForSymbols([]string{"TSLA", "AMD", "MISSING"})
	require.NoError(t, err)
	require.Contains(t, latest, "TSLA")
	require.Contains(t, latest, "AMD")
	assert.Equal(t, "P1_EXTENDED", latest["TSLA"].AlertSubtype)
	assert.NotContains(t, latest, "MISSING")
}
