package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/canslim/sentinel/internal/config"
	"github.com/canslim/sentinel/internal/domain"
)

const discordRequestTimeout = 8 * time.Second

// DiscordNotifier delivers alerts as Discord webhook messages, one
// webhook per severity-routed channel (e.g. "critical", "alerts").
type DiscordNotifier struct {
	webhooks   map[string]string
	httpClient *http.Client
}

// NewDiscordNotifier builds a DiscordNotifier from the configured webhook
// map. An empty map is valid; Notify then reports every alert as
// undeliverable.
func NewDiscordNotifier(cfg config.DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhooks:   cfg.Webhooks,
		httpClient: &http.Client{Timeout: discordRequestTimeout},
	}
}

// channelFor routes an alert to a webhook by severity, falling back to
// "alerts" for anything not critical.
func channelFor(severity domain.Severity) string {
	if severity == domain.SeverityCritical {
		return "critical"
	}
	return "alerts"
}

// Notify posts alert to its severity-routed webhook.
func (d *DiscordNotifier) Notify(alert *domain.Alert) (string, error) {
	channel := channelFor(alert.Severity)
	webhook, ok := d.webhooks[channel]
	if !ok || strings.TrimSpace(webhook) == "" {
		return channel, fmt.Errorf("discord webhook not configured for channel %q", channel)
	}

	content := fmt.Sprintf("**%s/%s** %s — %s (%.2f%%)", alert.AlertType, alert.AlertSubtype,
		alert.Severity, alert.PositionID, alert.PnLPctAtAlert)

	body, err := json.Marshal(map[string]any{"content": content})
	if err != nil {
		return channel, fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return channel, fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return channel, fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return channel, fmt.Errorf("discord http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return channel, nil
}
