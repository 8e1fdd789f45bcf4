package repository

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeCreateAndGetBySymbol(t *testing.T) {
	repo := NewOutcomeRepository(newTestDB(t), testLogger())

	o := &domain.Outcome{
		ID:               "out-1",
		PositionID:       "pos-1",
		Symbol:           "AAPL",
		EntryDate:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		ExitDate:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RSRatingAtEntry:  92,
		EPSRatingAtEntry: 88,
		GradeAtEntry:     "A",
		ScoreAtEntry:     8.5,
		GrossPct:         24.3,
		HoldingDays:      55,
		Outcome:          domain.OutcomeSuccess,
	}
	require.NoError(t, repo.Create(o))

	got, err := repo.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.OutcomeSuccess, got[0].Outcome)
	assert.Equal(t, 24.3, got[0].GrossPct)
	assert.Equal(t, o.EntryDate, got[0].EntryDate)
}

func TestOutcomeGetAllOrdersByExitDate(t *testing.T) {
	repo := NewOutcomeRepository(newTestDB(t), testLogger())

	later := &domain.Outcome{
		ID: "out-later", Symbol: "MSFT",
		EntryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExitDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Outcome:   domain.OutcomeFailed,
	}
	earlier := &domain.Outcome{
		ID: "out-earlier", Symbol: "NVDA",
		EntryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExitDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Outcome:   domain.OutcomeStopped,
	}
	require.NoError(t, repo.Create(later))
	require.NoError(t, repo.Create(earlier))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "NVDA", all[0].Symbol)
	assert.Equal(t, "MSFT", all[1].Symbol)
}
