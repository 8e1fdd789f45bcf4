package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTSentimentProviderCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/fear-greed/current")
		w.Write([]byte(`{"score": 18, "date": "2024-01-15"}`))
	}))
	defer srv.Close()

	p := NewRESTSentimentProvider(srv.URL, 5*time.Second, zerolog.Nop())
	fg, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, fg.Score)
	assert.Equal(t, domain.FearGreedExtremeFear, fg.Rating)
}

func TestRESTSentimentProviderHistorical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "days=7")
		w.Write([]byte(`{"readings": [{"score": 60, "date": "2024-01-15"}, {"score": 80, "date": "2024-01-14"}]}`))
	}))
	defer srv.Close()

	p := NewRESTSentimentProvider(srv.URL, 5*time.Second, zerolog.Nop())
	readings, err := p.Historical(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, domain.FearGreedGreed, readings[0].Rating)
	assert.Equal(t, domain.FearGreedExtremeGreed, readings[1].Rating)
}

func TestRatingForFearGreedScoreBuckets(t *testing.T) {
	cases := map[int]domain.FearGreedRating{
		0: domain.FearGreedExtremeFear, 24: domain.FearGreedExtremeFear,
		25: domain.FearGreedFear, 44: domain.FearGreedFear,
		45: domain.FearGreedNeutral, 54: domain.FearGreedNeutral,
		55: domain.FearGreedGreed, 74: domain.FearGreedGreed,
		75: domain.FearGreedExtremeGreed, 100: domain.FearGreedExtremeGreed,
	}
	for score, want := range cases {
		assert.Equal(t, want, domain.RatingForFearGreedScore(score), score)
	}
}
