package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// RESTSentimentProvider polls a fear-and-greed index REST endpoint.
type RESTSentimentProvider struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewRESTSentimentProvider creates a RESTSentimentProvider against
// baseURL with the given request timeout.
func NewRESTSentimentProvider(baseURL string, timeout time.Duration, log zerolog.Logger) *RESTSentimentProvider {
	return &RESTSentimentProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "sentiment_provider").Logger(),
	}
}

type fearGreedPayload struct {
	Score int    `json:"score"`
	Date  string `json:"date"`
}

// Current fetches today's fear-and-greed reading.
func (p *RESTSentimentProvider) Current(ctx context.Context) (FearGreed, error) {
	body, err := p.fetch(ctx, p.baseURL+"/fear-greed/current")
	if err != nil {
		return FearGreed{}, err
	}

	var payload fearGreedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return FearGreed{}, fmt.Errorf("parse fear-greed reading: %w", err)
	}
	return toFearGreed(payload), nil
}

// Historical fetches the last `days` fear-and-greed readings, newest
// first.
func (p *RESTSentimentProvider) Historical(ctx context.Context, days int) ([]FearGreed, error) {
	body, err := p.fetch(ctx, fmt.Sprintf("%s/fear-greed/historical?days=%d", p.baseURL, days))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Readings []fearGreedPayload `json:"readings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse fear-greed history: %w", err)
	}

	out := make([]FearGreed, 0, len(payload.Readings))
	for _, r := range payload.Readings {
		out = append(out, toFearGreed(r))
	}
	return out, nil
}

func toFearGreed(p fearGreedPayload) FearGreed {
	date, _ := time.Parse(dateOnlyLayout, p.Date)
	return FearGreed{
		Date:   date,
		Score:  p.Score,
		Rating: domain.RatingForFearGreedScore(p.Score),
	}
}

func (p *RESTSentimentProvider) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build sentiment request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sentiment request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sentiment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sentiment feed returned status %d", resp.StatusCode)
	}
	return body, nil
}
