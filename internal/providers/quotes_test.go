package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestBackoffDelayCapsAtMax(t *testing.T) {
	assert.Equal(t, quoteBaseReconnectDelay, backoffDelay(1))
	assert.Equal(t, quoteMaxReconnectDelay, backoffDelay(20))
}

func TestGatewayQuoteProviderHandleMessageUpdatesCache(t *testing.T) {
	g := &GatewayQuoteProvider{cache: make(map[string]Quote), log: zerolog.Nop()}

	err := g.handleMessage([]byte(`{"symbol":"AAPL","last":150.25,"bid":150.20,"ask":150.30,"volume":1000000,"ma21":148,"ma50":145,"ma200":140}`))
	require.NoError(t, err)

	q, err := g.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 150.25, q.Last)
	assert.Equal(t, 148.0, q.MA21)
}

func TestGatewayQuoteProviderGetQuoteMissingSymbol(t *testing.T) {
	g := &GatewayQuoteProvider{cache: make(map[string]Quote), log: zerolog.Nop()}
	_, err := g.GetQuote(context.Background(), "MSFT")
	assert.Error(t, err)
}

func TestGatewayQuoteProviderIsConnectedReflectsState(t *testing.T) {
	g := &GatewayQuoteProvider{cache: make(map[string]Quote), log: zerolog.Nop()}
	assert.False(t, g.IsConnected())
}

func TestGatewayQuoteProviderConnectAndDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Write(r.Context(), websocket.MessageText, []byte(`{"symbol":"IBM","last":186.2}`))
		time.Sleep(50 * time.Millisecond)
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	cfg := config.IBKRConfig{Host: "", Port: 0}
	g := NewGatewayQuoteProvider(cfg, zerolog.Nop())
	g.url = "ws" + srv.URL[len("http"):]
	t.Cleanup(func() { g.Stop() })

	require.NoError(t, g.connect())
	assert.True(t, g.IsConnected())
	g.stopped = true // prevent readLoop's defer from spawning a reconnect goroutine

	ctx := g.connCtx
	g.readLoop(ctx)

	q, err := g.GetQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 186.2, q.Last)
}
