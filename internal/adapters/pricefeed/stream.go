package pricefeed

// stream.go: feed por websocket (bookTicker de Binance).
//
// Run mantiene la conexión abierta y reconecta con backoff; LatestPrice solo
// lee el último mid-price recibido, nunca bloquea en la red.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/clock"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443/ws"
	readTimeout      = 30 * time.Second
	reconnectMin     = time.Second
	reconnectMax     = 30 * time.Second
	defaultStaleness = 5 * time.Second
)

type bookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	Bid      string `json:"b"`
	Ask      string `json:"a"`
}

// Stream es un ports.PriceFeed alimentado por websocket.
type Stream struct {
	url        string
	symbol     string
	clock      ports.Clock
	staleAfter time.Duration

	mu      sync.RWMutex
	last    domain.PriceQuote
	hasLast bool
}

// NewStream crea un feed para symbol. baseURL vacío usa Binance.
func NewStream(baseURL, symbol string) *Stream {
	if baseURL == "" {
		baseURL = defaultStreamURL
	}
	return &Stream{
		url:        fmt.Sprintf("%s/%s@bookTicker", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol)),
		symbol:     strings.ToUpper(symbol),
		clock:      clock.New(),
		staleAfter: defaultStaleness,
	}
}

// WithStaleAfter cambia a partir de cuándo el último quote se considera muerto.
func (s *Stream) WithStaleAfter(d time.Duration) *Stream {
	if d > 0 {
		s.staleAfter = d
	}
	return s
}

// Run conecta y lee hasta que ctx se cancele, reconectando ante errores.
func (s *Stream) Run(ctx context.Context) error {
	wait := reconnectMin
	for {
		err := s.readLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("pricefeed: stream disconnected, reconnecting", "url", s.url, "wait", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
		wait *= 2
		if wait > reconnectMax {
			wait = reconnectMax
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	slog.Info("pricefeed: stream connected", "url", s.url)

	// Cerrar la conexión desbloquea ReadMessage al cancelar.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := s.handle(data); err != nil {
			slog.Debug("pricefeed: bad stream message", "err", err)
		}
	}
}

func (s *Stream) handle(data []byte) error {
	var msg bookTicker
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return fmt.Errorf("bid %q: %w", msg.Bid, err)
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return fmt.Errorf("ask %q: %w", msg.Ask, err)
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return fmt.Errorf("empty book side")
	}

	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	s.mu.Lock()
	s.last = domain.PriceQuote{Symbol: s.symbol, Price: mid, ObservedAt: s.clock.Now(), Source: "stream"}
	s.hasLast = true
	s.mu.Unlock()
	return nil
}

// LatestPrice devuelve el último mid-price si no está muerto.
func (s *Stream) LatestPrice(_ context.Context, symbol string) (domain.PriceQuote, error) {
	if !strings.EqualFold(symbol, s.symbol) {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.Stream: subscribed to %s, asked for %s", s.symbol, symbol)
	}
	s.mu.RLock()
	q, ok := s.last, s.hasLast
	s.mu.RUnlock()

	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.Stream: no quote received yet")
	}
	if age := s.clock.Now().Sub(q.ObservedAt); age > s.staleAfter {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.Stream: last quote is %s old", age.Round(time.Millisecond))
	}
	return q, nil
}
