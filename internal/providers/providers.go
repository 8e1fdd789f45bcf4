// Package providers implements the three capability interfaces the core
// depends on for market data: real-time quotes, historical daily bars,
// and fear-and-greed sentiment. Concrete vendor bindings live here;
// workers and checkers only ever see the interfaces.
package providers

import (
	"context"
	"time"

	"github.com/canslim/sentinel/internal/domain"
)

// Quote is a single real-time snapshot for a symbol.
type Quote struct {
	Symbol       string
	Bid          float64
	Ask          float64
	Last         float64
	Volume       float64
	AvgVolume50D float64
	MA21         float64
	MA50         float64
	MA200        float64
	Time         time.Time
}

// Bar is a single daily OHLCV observation.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FearGreed is one day's 0-100 sentiment reading and its qualitative
// bucket.
type FearGreed struct {
	Date   time.Time
	Score  int
	Rating domain.FearGreedRating
}

// RealtimeQuoteProvider supplies live quotes. Not required during
// off-hours; IsConnected lets a worker decide whether to treat a missing
// quote as "no data" rather than an error.
type RealtimeQuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	IsConnected() bool
}

// HistoricalBarsProvider supplies daily OHLCV bars and earnings dates.
// Rate-limited; callers (notably the regime historical seeder) must
// space calls themselves.
type HistoricalBarsProvider interface {
	DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]Bar, error)
	NextEarningsDate(ctx context.Context, symbol string) (time.Time, bool, error)
}

// SentimentProvider supplies the fear-and-greed feed.
type SentimentProvider interface {
	Current(ctx context.Context) (FearGreed, error)
	Historical(ctx context.Context, days int) ([]FearGreed, error)
}
