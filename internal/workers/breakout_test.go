package workers

import (
	"context"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/checkers"
	"github.com/canslim/sentinel/internal/database"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/canslim/sentinel/internal/scoring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newWorkerTestRepos(t *testing.T) (*repository.PositionRepository, *repository.RegimeRepository) {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	return repository.NewPositionRepository(db.Conn(), zerolog.Nop()),
		repository.NewRegimeRepository(db.Conn(), zerolog.Nop())
}

func TestRescorePersistsOnChange(t *testing.T) {
	positions, _ := newWorkerTestRepos(t)
	p := &domain.Position{ID: "p1", Symbol: "NVDA", Pattern: "cup with handle", RSRating: 95, BaseStage: "2", BaseDepthPct: 18, BaseLengthWeek: 8}
	require.NoError(t, positions.CreateWatchlistItem(p))

	w := &BreakoutWorker{positions: positions, scorer: scoring.New(scoring.DefaultConfig())}

	updated, err := w.rescore(p, nil)
	require.NoError(t, err)
	require.NotEqual(t, "", updated.EntryGrade)

	reloaded, err := positions.GetByID(p.ID)
	require.NoError(t, err)
	require.Equal(t, updated.EntryGrade, reloaded.EntryGrade)
	require.Equal(t, updated.EntryScore, reloaded.EntryScore)
}

func TestRescoreIsNoopWhenUnchanged(t *testing.T) {
	positions, _ := newWorkerTestRepos(t)
	p := &domain.Position{ID: "p1", Symbol: "NVDA", Pattern: "cup with handle", RSRating: 95, BaseStage: "2", BaseDepthPct: 18, BaseLengthWeek: 8}
	require.NoError(t, positions.CreateWatchlistItem(p))

	w := &BreakoutWorker{positions: positions, scorer: scoring.New(scoring.DefaultConfig())}

	first, err := w.rescore(p, nil)
	require.NoError(t, err)
	second, err := w.rescore(first, nil)
	require.NoError(t, err)

	require.Equal(t, first.EntryGrade, second.EntryGrade)
	require.Equal(t, first.EntryScore, second.EntryScore)
}

func TestEvaluateConfirmsBreakoutAndSizesIt(t *testing.T) {
	positions, regimes := newWorkerTestRepos(t)
	p := &domain.Position{ID: "p1", Symbol: "NVDA", Pattern: "cup with handle", RSRating: 95, Pivot: 140.0, BaseStage: "2", BaseDepthPct: 18, BaseLengthWeek: 8}
	require.NoError(t, positions.CreateWatchlistItem(p))

	suite := checkers.NewSuite(zerolog.Nop(), checkers.NewBreakoutChecker(checkers.DefaultConfig()))
	alertService := alerting.NewService(fakeAlertRepo{}, nil, nil, zerolog.Nop())

	w := NewBreakoutWorker(
		positions, regimes,
		fakeQuoteProvider{quote: providers.Quote{Last: 142.50, Volume: 2_000_000, AvgVolume50D: 1_000_000, Bid: 142.40, Ask: 142.60, Time: time.Now()}},
		fakeBarsProvider{bars: nil},
		suite, alertService, nil, 0,
		scoring.New(scoring.DefaultConfig()), 100_000, zerolog.Nop(),
	)

	alerts, err := w.evaluate(context.Background(), p, domain.RegimeBullish)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "BREAKOUT", alerts[0].AlertType)
	require.Equal(t, "CONFIRMED", alerts[0].AlertSubtype)
}

type fakeAlertRepo struct{}

func (fakeAlertRepo) Create(a *domain.Alert) error { return nil }
func (fakeAlertRepo) CheckCooldown(symbol, alertType, alertSubtype string, window time.Duration) (bool, error) {
	return false, nil
}
func (fakeAlertRepo) MarkSent(alertID, channel string, at time.Time) error { return nil }
func (fakeAlertRepo) GetLatestForPosition(positionID string) (*domain.Alert, error) { return nil, nil }
func (fakeAlertRepo) GetLatestForSymbols(symbols []string) (map[string]*domain.Alert, error) {
	return nil, nil
}
func (fakeAlertRepo) Acknowledge(alertID string) error { return nil }

var _ providers.RealtimeQuoteProvider = fakeQuoteProvider{}
var _ providers.HistoricalBarsProvider = fakeBarsProvider{}

type fakeQuoteProvider struct {
	quote providers.Quote
	err   error
}

func (f fakeQuoteProvider) GetQuote(ctx context.Context, symbol string) (providers.Quote, error) {
	return f.quote, f.err
}
func (f fakeQuoteProvider) IsConnected() bool { return true }

type fakeBarsProvider struct {
	bars []providers.Bar
}

func (f fakeBarsProvider) DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]providers.Bar, error) {
	return f.bars, nil
}
func (f fakeBarsProvider) NextEarningsDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
