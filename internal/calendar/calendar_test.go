package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeFeed struct {
	status   Status
	statusErr error
	holidays []Holiday
	holidaysErr error
	statusCalls int
}

func (f *fakeFeed) CurrentStatus(ctx context.Context) (Status, error) {
	f.statusCalls++
	return f.status, f.statusErr
}

func (f *fakeFeed) UpcomingHolidays(ctx context.Context) ([]Holiday, error) {
	return f.holidays, f.holidaysErr
}

func TestIsMarketOpenUsesFeedForCurrentTime(t *testing.T) {
	feed := &fakeFeed{status: Status{NYSEOpen: true}}
	c := New(feed, testLogger())
	open := c.IsMarketOpen(context.Background(), time.Now())
	assert.True(t, open)
	assert.Equal(t, 1, feed.statusCalls)
}

func TestIsMarketOpenCachesStatus(t *testing.T) {
	feed := &fakeFeed{status: Status{NYSEOpen: true}}
	c := New(feed, testLogger())
	now := time.Now()
	c.IsMarketOpen(context.Background(), now)
	c.IsMarketOpen(context.Background(), now)
	assert.Equal(t, 1, feed.statusCalls, "second call within TTL should hit cache")
}

func TestIsMarketOpenFallsBackOnFeedError(t *testing.T) {
	feed := &fakeFeed{statusErr: assertErr{}}
	c := New(feed, testLogger())
	// Should not panic and should consult the fallback calendar instead.
	_ = c.IsMarketOpen(context.Background(), time.Now())
}

func TestNextTradingDaySkipsWeekend(t *testing.T) {
	c := New(nil, testLogger())
	friday := time.Date(2024, 5, 31, 0, 0, 0, 0, c.loc)
	require.Equal(t, time.Friday, friday.Weekday())
	next := c.NextTradingDay(friday)
	assert.Equal(t, "2024-06-03", next.Format("2006-01-02"))
}

type assertErr struct{}

func (assertErr) Error() string { return "feed unavailable" }
