package providers

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/canslim/sentinel/internal/config"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	quoteDialTimeout = 30 * time.Second

	quoteBaseReconnectDelay   = 5 * time.Second
	quoteMaxReconnectDelay    = 5 * time.Minute
	quoteMaxReconnectAttempts = 10

	quoteStaleThreshold = time.Minute
)

// quoteWireMessage is the frame the gateway streams per update: a single
// JSON object carrying the symbol alongside its quote fields.
type quoteWireMessage struct {
	Symbol       string  `json:"symbol"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       float64 `json:"volume"`
	AvgVolume50D float64 `json:"avg_volume_50d"`
	MA21         float64 `json:"ma21"`
	MA50         float64 `json:"ma50"`
	MA200        float64 `json:"ma200"`
}

// GatewayQuoteProvider is a RealtimeQuoteProvider backed by a streaming
// gateway connection (the IBKR-equivalent real-time feed). It forces
// HTTP/1.1 on the dialer, reconnects with exponential backoff, and caches
// the last quote per symbol whatever its age, following the
// teacher's MarketStatusWebSocket shape adapted from market-open/closed
// status frames to per-symbol price frames.
type GatewayQuoteProvider struct {
	url        string
	httpClient *http.Client
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	log zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	cache   map[string]Quote
	cacheMu sync.RWMutex
}

// NewGatewayQuoteProvider creates a GatewayQuoteProvider dialing
// cfg.IBKR's gateway websocket endpoint.
func NewGatewayQuoteProvider(cfg config.IBKRConfig, log zerolog.Logger) *GatewayQuoteProvider {
	return &GatewayQuoteProvider{
		url:        fmt.Sprintf("ws://%s:%d/ws/quotes", cfg.Host, cfg.Port),
		httpClient: createHTTP1Client(),
		log:        log.With().Str("component", "gateway_quote_provider").Logger(),
		cache:      make(map[string]Quote),
		stopChan:   make(chan struct{}),
	}
}

// createHTTP1Client forces HTTP/1.1 on the dialer: the WebSocket upgrade
// handshake requires it, but some reverse proxies prefer to negotiate
// HTTP/2 via TLS ALPN unless told otherwise.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// Start dials the gateway and begins the read loop, retrying in the
// background on initial failure.
func (g *GatewayQuoteProvider) Start() error {
	g.log.Info().Msg("starting gateway quote provider")
	if err := g.connect(); err != nil {
		g.log.Warn().Err(err).Msg("initial gateway connection failed, retrying in background")
		go g.reconnectLoop()
		return err
	}
	g.mu.RLock()
	ctx := g.connCtx
	g.mu.RUnlock()
	go g.readLoop(ctx)
	return nil
}

// Stop closes the connection and halts reconnection attempts.
func (g *GatewayQuoteProvider) Stop() error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	g.stopped = true
	g.mu.Unlock()

	close(g.stopChan)
	return g.disconnect()
}

func (g *GatewayQuoteProvider) connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(context.Background(), quoteDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, g.url, &websocket.DialOptions{HTTPClient: g.httpClient})
	if err != nil {
		return fmt.Errorf("dial quote gateway: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	g.conn = conn
	g.connCtx = connCtx
	g.cancelFunc = connCancel
	g.connected = true

	g.log.Info().Msg("connected to quote gateway")
	return nil
}

func (g *GatewayQuoteProvider) disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil
	}
	if g.cancelFunc != nil {
		g.cancelFunc()
		g.cancelFunc = nil
	}
	err := g.conn.Close(websocket.StatusNormalClosure, "")
	g.conn = nil
	g.connCtx = nil
	g.connected = false
	if err != nil {
		return fmt.Errorf("close quote gateway: %w", err)
	}
	return nil
}

func (g *GatewayQuoteProvider) readLoop(ctx context.Context) {
	defer func() {
		g.mu.RLock()
		stopped := g.stopped
		g.mu.RUnlock()
		if !stopped {
			go g.reconnectLoop()
		}
	}()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				g.log.Info().Msg("quote gateway closed normally")
			} else if ctx.Err() == nil {
				g.log.Error().Err(err).Msg("unexpected quote gateway read error")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := g.handleMessage(data); err != nil {
			g.log.Error().Err(err).Msg("failed to handle quote frame")
		}
	}
}

func (g *GatewayQuoteProvider) handleMessage(data []byte) error {
	var msg quoteWireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse quote frame: %w", err)
	}
	if msg.Symbol == "" {
		return nil
	}

	q := Quote{
		Symbol: msg.Symbol, Bid: msg.Bid, Ask: msg.Ask, Last: msg.Last,
		Volume: msg.Volume, AvgVolume50D: msg.AvgVolume50D,
		MA21: msg.MA21, MA50: msg.MA50, MA200: msg.MA200,
		Time: time.Now(),
	}

	g.cacheMu.Lock()
	g.cache[msg.Symbol] = q
	g.cacheMu.Unlock()
	return nil
}

func (g *GatewayQuoteProvider) reconnectLoop() {
	g.mu.Lock()
	if g.reconnecting || g.stopped {
		g.mu.Unlock()
		return
	}
	g.reconnecting = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.reconnecting = false
		g.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-g.stopChan:
			return
		default:
		}

		g.mu.RLock()
		stopped := g.stopped
		g.mu.RUnlock()
		if stopped {
			return
		}

		if attempt >= quoteMaxReconnectAttempts {
			g.log.Error().Int("attempts", attempt).Msg("giving up on quote gateway reconnection")
			return
		}

		attempt++
		delay := backoffDelay(attempt)
		g.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting to quote gateway")

		select {
		case <-time.After(delay):
		case <-g.stopChan:
			return
		}

		if err := g.connect(); err != nil {
			g.log.Error().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		g.mu.RLock()
		ctx := g.connCtx
		g.mu.RUnlock()
		go g.readLoop(ctx)
		return
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := float64(quoteBaseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(quoteMaxReconnectDelay) {
		delay = float64(quoteMaxReconnectDelay)
	}
	return time.Duration(delay)
}

// GetQuote returns the cached quote for symbol. A quote older than
// quoteStaleThreshold is still returned (callers decide staleness
// tolerance), but IsConnected should be checked first during off-hours.
func (g *GatewayQuoteProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	g.cacheMu.RLock()
	defer g.cacheMu.RUnlock()
	q, ok := g.cache[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no cached quote for %s", symbol)
	}
	return q, nil
}

// IsConnected reports whether the gateway websocket is currently up.
func (g *GatewayQuoteProvider) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}
