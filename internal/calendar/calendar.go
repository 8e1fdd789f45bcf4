// Package calendar answers whether the US equity market is open,
// preferring a remote status feed and falling back to a deterministic
// computed calendar when the feed is unavailable or the caller asks
// about a date other than today.
package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RegularOpen, RegularClose and EarlyClose are wall-clock times in the
// exchange timezone (America/New_York).
var (
	RegularOpen  = clock{9, 30}
	RegularClose = clock{16, 0}
	EarlyClose   = clock{13, 0}
)

type clock struct{ Hour, Min int }

func (c clock) onDate(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Min, 0, 0, loc)
}

// Status is a point-in-time market status as reported by a remote feed.
type Status struct {
	NYSEOpen   bool
	NasdaqOpen bool
}

// Holiday is one upcoming-holiday entry from a remote feed.
type Holiday struct {
	Date   time.Time
	Status string // "closed" or "early-close"
	Open   *time.Time
	Close  *time.Time
}

// StatusFeed is the remote market-status provider. A real binding talks
// to a vendor's marketstatus endpoints; it is an external collaborator
// the core only consumes through this interface.
type StatusFeed interface {
	CurrentStatus(ctx context.Context) (Status, error)
	UpcomingHolidays(ctx context.Context) ([]Holiday, error)
}

const (
	statusCacheTTL   = 60 * time.Second
	holidaysCacheTTL = time.Hour
)

// Calendar decides whether the market is open and what hours apply for a
// given date, preferring StatusFeed with two independently cached
// endpoints and falling back to a deterministic hardcoded calendar.
type Calendar struct {
	feed StatusFeed
	loc  *time.Location
	log  zerolog.Logger

	mu               sync.RWMutex
	statusCache      Status
	statusCacheOK    bool
	statusCacheAt    time.Time
	holidaysCache    []Holiday
	holidaysCacheOK  bool
	holidaysCacheAt  time.Time

	fallbackMu   sync.Mutex
	fallbackYear map[int]yearCalendar
}

type yearCalendar struct {
	holidays   map[string]bool // date "2006-01-02" -> true
	earlyClose map[string]bool
}

// New constructs a Calendar. feed may be nil, in which case every query
// uses the deterministic fallback calendar.
func New(feed StatusFeed, log zerolog.Logger) *Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Calendar{
		feed:         feed,
		loc:          loc,
		log:          log.With().Str("component", "calendar").Logger(),
		fallbackYear: make(map[int]yearCalendar),
	}
}

// IsTradingDay reports whether d, read in the exchange timezone, is a
// weekday and not a holiday.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	d = d.In(c.loc)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(d)
}

// IsHoliday reports whether d is a market holiday, consulting the cached
// remote holiday list first and falling back to the computed calendar.
func (c *Calendar) IsHoliday(d time.Time) bool {
	d = d.In(c.loc)
	if holidays, ok := c.cachedHolidays(); ok {
		for _, h := range holidays {
			if sameDate(h.Date, d) {
				return h.Status == "closed"
			}
		}
	}
	return c.isHolidayFallback(d)
}

// IsEarlyClose reports whether d closes at 13:00 rather than 16:00.
func (c *Calendar) IsEarlyClose(d time.Time) bool {
	d = d.In(c.loc)
	if holidays, ok := c.cachedHolidays(); ok {
		for _, h := range holidays {
			if !sameDate(h.Date, d) {
				continue
			}
			if h.Status == "early-close" {
				return true
			}
			if h.Close != nil && h.Close.Before(RegularClose.onDate(d, c.loc)) {
				return true
			}
		}
	}
	return c.isEarlyCloseFallback(d)
}

// MarketHours returns the (open, close) wall-clock times for d, or
// ok=false if the market is closed that day.
func (c *Calendar) MarketHours(d time.Time) (open, close time.Time, ok bool) {
	d = d.In(c.loc)
	if !c.IsTradingDay(d) {
		return time.Time{}, time.Time{}, false
	}
	if c.IsEarlyClose(d) {
		return RegularOpen.onDate(d, c.loc), EarlyClose.onDate(d, c.loc), true
	}
	return RegularOpen.onDate(d, c.loc), RegularClose.onDate(d, c.loc), true
}

// IsMarketOpen reports whether the market is open at instant now. When
// now is within 5 minutes of the current time it prefers the live
// StatusFeed; otherwise (or on feed failure) it uses the fallback
// calendar applied to now's wall-clock time.
func (c *Calendar) IsMarketOpen(ctx context.Context, now time.Time) bool {
	localNow := now.In(c.loc)
	if time.Since(now).Abs() <= 5*time.Minute {
		if status, ok := c.cachedStatus(ctx); ok {
			return status.NYSEOpen || status.NasdaqOpen
		}
	}
	return c.isMarketOpenFallback(localNow)
}

func (c *Calendar) isMarketOpenFallback(now time.Time) bool {
	if !c.IsTradingDay(now) {
		return false
	}
	open, close, ok := c.MarketHours(now)
	if !ok {
		return false
	}
	t := now.Format("15:04")
	return t >= open.Format("15:04") && t <= close.Format("15:04")
}

// NextTradingDay returns the next date (after d) on which the market is
// open, scanning forward up to 10 calendar days.
func (c *Calendar) NextTradingDay(d time.Time) time.Time {
	d = d.In(c.loc)
	next := d.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(next) {
			return next
		}
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SecondsUntilOpen returns the seconds remaining until market open, or 0
// if the market is already open.
func (c *Calendar) SecondsUntilOpen(ctx context.Context, now time.Time) int {
	if c.IsMarketOpen(ctx, now) {
		return 0
	}
	local := now.In(c.loc)
	var openAt time.Time
	if c.IsTradingDay(local) && local.Format("15:04") < RegularOpen.onDate(local, c.loc).Format("15:04") {
		openAt = RegularOpen.onDate(local, c.loc)
	} else {
		next := c.NextTradingDay(local)
		openAt = RegularOpen.onDate(next, c.loc)
	}
	secs := int(openAt.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}

// SecondsUntilClose returns the seconds remaining until market close, or
// 0 if the market is already closed.
func (c *Calendar) SecondsUntilClose(ctx context.Context, now time.Time) int {
	if !c.IsMarketOpen(ctx, now) {
		return 0
	}
	local := now.In(c.loc)
	_, closeAt, ok := c.MarketHours(local)
	if !ok {
		return 0
	}
	secs := int(closeAt.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// cachedStatus returns the cached remote status, refreshing it if the
// 60s TTL has elapsed. Stale cache is returned (with ok=true) on feed
// error rather than falling through silently.
func (c *Calendar) cachedStatus(ctx context.Context) (Status, bool) {
	if c.feed == nil {
		return Status{}, false
	}
	c.mu.RLock()
	fresh := c.statusCacheOK && time.Since(c.statusCacheAt) < statusCacheTTL
	cached := c.statusCache
	hadCache := c.statusCacheOK
	c.mu.RUnlock()
	if fresh {
		return cached, true
	}

	status, err := c.feed.CurrentStatus(ctx)
	if err != nil {
		if hadCache {
			c.log.Warn().Err(err).Msg("status feed unavailable, serving stale cache")
			return cached, true
		}
		c.log.Warn().Err(err).Msg("status feed unavailable, no cache, falling back")
		return Status{}, false
	}

	c.mu.Lock()
	c.statusCache = status
	c.statusCacheOK = true
	c.statusCacheAt = time.Now()
	c.mu.Unlock()
	return status, true
}

// cachedHolidays returns the cached remote holiday list, refreshing it if
// the 1h TTL has elapsed.
func (c *Calendar) cachedHolidays() ([]Holiday, bool) {
	if c.feed == nil {
		return nil, false
	}
	c.mu.RLock()
	fresh := c.holidaysCacheOK && time.Since(c.holidaysCacheAt) < holidaysCacheTTL
	cached := c.holidaysCache
	hadCache := c.holidaysCacheOK
	c.mu.RUnlock()
	if fresh {
		return cached, true
	}

	holidays, err := c.feed.UpcomingHolidays(context.Background())
	if err != nil {
		if hadCache {
			c.log.Warn().Err(err).Msg("holidays feed unavailable, serving stale cache")
			return cached, true
		}
		c.log.Warn().Err(err).Msg("holidays feed unavailable, no cache, falling back")
		return nil, false
	}

	c.mu.Lock()
	c.holidaysCache = holidays
	c.holidaysCacheOK = true
	c.holidaysCacheAt = time.Now()
	c.mu.Unlock()
	return holidays, true
}
