package alerting

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canslim/sentinel/internal/config"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifierSendsToSeverityChannel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(config.DiscordConfig{Webhooks: map[string]string{
		"critical": srv.URL + "/critical",
		"alerts":   srv.URL + "/alerts",
	}})

	channel, err := notifier.Notify(&domain.Alert{ID: "a1", Severity: domain.SeverityCritical, AlertType: "STOP", AlertSubtype: "HARD_STOP"})
	require.NoError(t, err)
	assert.Equal(t, "critical", channel)
	assert.Equal(t, "/critical", gotPath)
}

func TestDiscordNotifierMissingWebhookErrors(t *testing.T) {
	notifier := NewDiscordNotifier(config.DiscordConfig{Webhooks: map[string]string{}})
	_, err := notifier.Notify(&domain.Alert{ID: "a1", Severity: domain.SeverityInfo, AlertType: "BREAKOUT", AlertSubtype: "CONFIRMED"})
	assert.Error(t, err)
}

func TestDiscordNotifierNonSuccessStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	notifier := NewDiscordNotifier(config.DiscordConfig{Webhooks: map[string]string{"alerts": srv.URL}})
	_, err := notifier.Notify(&domain.Alert{ID: "a1", Severity: domain.SeverityInfo, AlertType: "BREAKOUT", AlertSubtype: "CONFIRMED"})
	assert.Error(t, err)
}
