package workers

import (
	"context"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/checkers"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/providers"
	"github.com/canslim/sentinel/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPositionWorkerEvaluateFlagsStopWarning(t *testing.T) {
	positions, regimes := newWorkerTestRepos(t)

	p := &domain.Position{ID: "p1", Symbol: "NVDA", Pattern: "cup with handle", RSRating: 95, Pivot: 140.0}
	require.NoError(t, positions.CreateWatchlistItem(p))
	entered, err := positions.LogEntry(p.ID, domain.Tranche1, 100, 140.0, time.Now())
	require.NoError(t, err)
	require.NotNil(t, entered)

	stop := 130.0
	withStop, err := positions.Update(p.ID, repository.UpdateOpts{StopPrice: &stop, ChangeSource: "test"})
	require.NoError(t, err)

	suite := checkers.NewSuite(zerolog.Nop(), checkers.NewStopChecker(checkers.DefaultConfig()))
	alertService := alerting.NewService(fakeAlertRepo{}, nil, nil, zerolog.Nop())

	w := NewPositionWorker(
		positions, regimes,
		fakeQuoteProvider{quote: providers.Quote{Last: 131.0, Volume: 500_000, AvgVolume50D: 1_000_000, Time: time.Now()}},
		fakeBarsProvider{bars: nil},
		suite, alertService, nil, 0, zerolog.Nop(),
	)

	alerts, err := w.evaluate(context.Background(), withStop, domain.RegimeNeutral)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "STOP", alerts[0].AlertType)
	require.Equal(t, "WARNING", alerts[0].AlertSubtype)
}
