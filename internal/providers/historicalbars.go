package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/canslim/sentinel/internal/config"
	"github.com/rs/zerolog"
)

// ErrRateLimitExceeded is returned once the provider's daily request budget
// is exhausted.
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("market data rate limit exceeded: %d requests/day", e.Limit)
}

// ErrSymbolNotFound is returned when the upstream feed has no series for a
// symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// CacheTTL groups the per-endpoint cache lifetimes: bars only settle once
// the session closes, earnings dates move rarely.
type CacheTTL struct {
	Bars     time.Duration
	Earnings time.Duration
}

// DefaultCacheTTL mirrors the historical-seeder cadence: bars are good for
// a session, earnings dates for a day.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{Bars: 6 * time.Hour, Earnings: 24 * time.Hour}
}

// RESTBarsProvider is a HistoricalBarsProvider backed by a daily-limited
// REST market-data feed, with a TTL cache to avoid burning the budget on
// repeat lookups within the same session.
type RESTBarsProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	ttl CacheTTL

	mu              sync.Mutex
	requestsToday   int
	dailyLimit      int
	lastResetDate   string

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// NewRESTBarsProvider creates a RESTBarsProvider wired to cfg's base URL,
// API key, and client timeout.
func NewRESTBarsProvider(cfg config.MarketDataConfig, dailyLimit int, log zerolog.Logger) *RESTBarsProvider {
	if dailyLimit <= 0 {
		dailyLimit = 25
	}
	return &RESTBarsProvider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		log:        log.With().Str("component", "historical_bars_provider").Logger(),
		ttl:        DefaultCacheTTL(),
		dailyLimit: dailyLimit,
		cache:      make(map[string]cacheEntry),
	}
}

// GetRemainingRequests reports how many calls are left in today's budget.
func (p *RESTBarsProvider) GetRemainingRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetIfNewDayLocked()
	remaining := p.dailyLimit - p.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetDailyCounter zeroes the request counter, as if a new day started.
func (p *RESTBarsProvider) ResetDailyCounter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestsToday = 0
	p.lastResetDate = time.Now().Format(dateOnlyLayout)
}

func (p *RESTBarsProvider) resetIfNewDayLocked() {
	today := time.Now().Format(dateOnlyLayout)
	if p.lastResetDate != today {
		p.requestsToday = 0
		p.lastResetDate = today
	}
}

func (p *RESTBarsProvider) checkRateLimit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetIfNewDayLocked()
	if p.requestsToday >= p.dailyLimit {
		return ErrRateLimitExceeded{Limit: p.dailyLimit}
	}
	p.requestsToday++
	return nil
}

const dateOnlyLayout = "2006-01-02"

func (p *RESTBarsProvider) setCache(key string, value any, ttl time.Duration) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (p *RESTBarsProvider) getFromCache(key string) (any, bool) {
	p.cacheMu.RLock()
	entry, ok := p.cache[key]
	p.cacheMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// ClearCache empties the cache, e.g. after a settings change to the API key.
func (p *RESTBarsProvider) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = make(map[string]cacheEntry)
}

// buildCacheKey derives a cache key from the function and its params,
// excluding apikey so the key stays stable across credential rotation.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

func (p *RESTBarsProvider) get(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	q := url.Values{}
	q.Set("function", function)
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build market data request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read market data response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data returned status %d", resp.StatusCode)
	}
	return body, nil
}

// DailyBars returns up to lookbackDays daily bars ending on end, newest
// first, consulting the cache before spending a request.
func (p *RESTBarsProvider) DailyBars(ctx context.Context, symbol string, end time.Time, lookbackDays int) ([]Bar, error) {
	params := map[string]string{"symbol": symbol, "outputsize": "full"}
	key := buildCacheKey("TIME_SERIES_DAILY", params)
	if cached, ok := p.getFromCache(key); ok {
		bars := cached.([]Bar)
		return trimBars(bars, end, lookbackDays), nil
	}

	if err := p.checkRateLimit(); err != nil {
		return nil, err
	}

	body, err := p.get(ctx, "TIME_SERIES_DAILY", params)
	if err != nil {
		return nil, err
	}

	bars, err := parseDailyTimeSeries(body, symbol)
	if err != nil {
		return nil, err
	}

	p.setCache(key, bars, p.ttl.Bars)
	return trimBars(bars, end, lookbackDays), nil
}

func trimBars(bars []Bar, end time.Time, lookbackDays int) []Bar {
	out := make([]Bar, 0, lookbackDays)
	for _, b := range bars {
		if b.Date.After(end) {
			continue
		}
		out = append(out, b)
		if len(out) >= lookbackDays {
			break
		}
	}
	return out
}

type dailyBarPayload struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// parseDailyTimeSeries parses a TIME_SERIES_DAILY response body into bars
// sorted newest first.
func parseDailyTimeSeries(body []byte, symbol string) ([]Bar, error) {
	var payload struct {
		Series map[string]dailyBarPayload `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse daily time series: %w", err)
	}
	if len(payload.Series) == 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	bars := make([]Bar, 0, len(payload.Series))
	for dateStr, raw := range payload.Series {
		date, err := time.Parse(dateOnlyLayout, dateStr)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{
			Date:   date,
			Open:   parseFloat64(raw.Open),
			High:   parseFloat64(raw.High),
			Low:    parseFloat64(raw.Low),
			Close:  parseFloat64(raw.Close),
			Volume: parseFloat64(raw.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.After(bars[j].Date) })
	return bars, nil
}

// parseFloat64 best-effort parses a numeric field, tolerating the
// sentinel strings the upstream feed uses for missing data.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "None", "null", "-":
		return 0
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

type earningsEntry struct {
	Symbol       string `json:"symbol"`
	ReportDate   string `json:"reportDate"`
}

// NextEarningsDate returns the next scheduled earnings date for symbol, or
// found=false if none is on the calendar.
func (p *RESTBarsProvider) NextEarningsDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	params := map[string]string{"symbol": symbol, "horizon": "3month"}
	key := buildCacheKey("EARNINGS_CALENDAR", params)
	if cached, ok := p.getFromCache(key); ok {
		entries := cached.([]earningsEntry)
		return nextFromEntries(entries)
	}

	if err := p.checkRateLimit(); err != nil {
		return time.Time{}, false, err
	}

	body, err := p.get(ctx, "EARNINGS_CALENDAR", params)
	if err != nil {
		return time.Time{}, false, err
	}

	var payload struct {
		Entries []earningsEntry `json:"earnings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, false, fmt.Errorf("parse earnings calendar: %w", err)
	}

	p.setCache(key, payload.Entries, p.ttl.Earnings)
	return nextFromEntries(payload.Entries)
}

func nextFromEntries(entries []earningsEntry) (time.Time, bool, error) {
	now := time.Now()
	var next time.Time
	found := false
	for _, e := range entries {
		d, err := time.Parse(dateOnlyLayout, e.ReportDate)
		if err != nil {
			continue
		}
		if d.Before(now) {
			continue
		}
		if !found || d.Before(next) {
			next = d
			found = true
		}
	}
	return next, found, nil
}
