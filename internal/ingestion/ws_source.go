package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pump-strategy-lab/internal/domain"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSKlineSource streams closed kline candles for a set of symbols over a
// combined-stream WebSocket connection. The exchange pushes an update per
// in-progress candle; only updates flagged closed are emitted.
type WSKlineSource struct {
	endpoint string // base, e.g. wss://stream.binance.com:9443
	symbols  []string
	interval string // e.g. 1m
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex

	out          chan *domain.Candle
	closed       atomic.Bool
	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewWSKlineSource creates a kline source. Connection is established on
// Subscribe.
func NewWSKlineSource(endpoint string, symbols []string, interval string, config *WSConfig) *WSKlineSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	return &WSKlineSource{
		endpoint: endpoint,
		symbols:  symbols,
		interval: interval,
		config:   cfg,
		out:      make(chan *domain.Candle, 1000),
		done:     make(chan struct{}),
	}
}

// Subscribe connects and returns the closed-candle channel.
func (s *WSKlineSource) Subscribe(ctx context.Context) (<-chan *domain.Candle, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("source closed")
	}
	if len(s.symbols) == 0 {
		return nil, fmt.Errorf("no symbols to subscribe")
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	log.Printf("[ws-kline] subscribed to %d symbols at %s interval", len(s.symbols), s.interval)

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s.out, nil
}

// streamURL builds the combined-stream URL for all symbols.
func (s *WSKlineSource) streamURL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + s.interval
	}
	return s.endpoint + "/stream?streams=" + strings.Join(streams, "/")
}

// connect establishes the WebSocket connection.
func (s *WSKlineSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Close closes the connection and the candle channel.
func (s *WSKlineSource) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
	return nil
}

// readLoop reads messages and emits closed candles.
func (s *WSKlineSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			// Connection error - reconnect with exponential backoff
			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect attempts to re-establish the stream. The combined-stream URL
// carries all subscriptions, so no resubscribe step is needed.
func (s *WSKlineSource) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		log.Printf("[ws-kline] reconnect failed: %v", err)
		return
	}
	log.Printf("[ws-kline] reconnected")
}

// handleMessage parses a combined-stream message and emits the candle when
// the kline update is final.
func (s *WSKlineSource) handleMessage(message []byte) {
	var msg combinedStreamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Data.EventType != "kline" || !msg.Data.Kline.Final {
		return
	}

	candle, err := parseKline(&msg.Data.Kline)
	if err != nil {
		log.Printf("[ws-kline] bad kline for %s: %v", msg.Data.Symbol, err)
		return
	}

	// Block until we can send - never drop candles
	select {
	case s.out <- candle:
	case <-s.done:
	}
}

// parseKline converts a kline payload into a candle. Prices and volumes
// arrive as decimal strings.
func parseKline(k *klinePayload) (*domain.Candle, error) {
	c := &domain.Candle{
		Symbol:    k.Symbol,
		OpenTime:  k.OpenTime,
		CloseTime: k.CloseTime,
	}

	var err error
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return nil, fmt.Errorf("parse open %q: %w", k.Open, err)
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return nil, fmt.Errorf("parse high %q: %w", k.High, err)
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return nil, fmt.Errorf("parse low %q: %w", k.Low, err)
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return nil, fmt.Errorf("parse close %q: %w", k.Close, err)
	}
	if c.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", k.Volume, err)
	}
	if c.QuoteVolume, err = strconv.ParseFloat(k.QuoteVolume, 64); err != nil {
		return nil, fmt.Errorf("parse quote volume %q: %w", k.QuoteVolume, err)
	}
	return c, nil
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *WSKlineSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Combined-stream message types

type combinedStreamMessage struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime    int64  `json:"t"`
	CloseTime   int64  `json:"T"`
	Symbol      string `json:"s"`
	Interval    string `json:"i"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
	Final       bool   `json:"x"`
}
