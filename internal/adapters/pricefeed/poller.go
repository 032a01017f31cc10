package pricefeed

// poller.go: poll periódico para display, con caché.
//
// El Poller también es el PriceFeed del engine: LatestPrice devuelve el
// último quote cacheado mientras tenga menos de maxAge; si no, pide uno nuevo
// aguas arriba. Para resolver un wager el engine usa PriceSince, que nunca
// devuelve un quote cacheado anterior a la expiración.

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxQuoteAge  = time.Second
)

// Poller cachea el último quote de un símbolo.
type Poller struct {
	upstream ports.PriceFeed
	symbol   string
	clock    ports.Clock
	interval time.Duration
	maxAge   time.Duration

	mu      sync.RWMutex
	last    domain.PriceQuote
	hasLast bool

	subsMu sync.RWMutex
	subs   []func(domain.PriceQuote)
}

// NewPoller crea un Poller. interval/maxAge <= 0 usan los defaults.
func NewPoller(upstream ports.PriceFeed, symbol string, clk ports.Clock, interval, maxAge time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxQuoteAge
	}
	return &Poller{
		upstream: upstream,
		symbol:   strings.ToUpper(symbol),
		clock:    clk,
		interval: interval,
		maxAge:   maxAge,
	}
}

// OnQuote registra fn para cada quote nuevo (display).
func (p *Poller) OnQuote(fn func(domain.PriceQuote)) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	p.subs = append(p.subs, fn)
}

// Run hace un poll inmediato y luego uno cada interval, hasta que ctx se cancele.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	if _, err := p.refresh(pctx); err != nil && ctx.Err() == nil {
		slog.Warn("pricefeed: poll failed", "symbol", p.symbol, "err", err)
	}
}

// LatestPrice implementa ports.PriceFeed.
func (p *Poller) LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	if strings.EqualFold(symbol, p.symbol) {
		if q, ok := p.Cached(); ok && p.clock.Now().Sub(q.ObservedAt) <= p.maxAge {
			return q, nil
		}
		return p.refresh(ctx)
	}
	return p.upstream.LatestPrice(ctx, symbol)
}

// PriceSince implementa ports.FreshPriceFeed: la caché solo vale si se
// observó en o después de since.
func (p *Poller) PriceSince(ctx context.Context, symbol string, since time.Time) (domain.PriceQuote, error) {
	if !strings.EqualFold(symbol, p.symbol) {
		return p.upstream.LatestPrice(ctx, symbol)
	}
	if q, ok := p.Cached(); ok && !q.ObservedBefore(since) {
		return q, nil
	}
	return p.refresh(ctx)
}

// Cached devuelve el último quote visto, sin importar su edad.
func (p *Poller) Cached() (domain.PriceQuote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasLast
}

func (p *Poller) refresh(ctx context.Context) (domain.PriceQuote, error) {
	q, err := p.upstream.LatestPrice(ctx, p.symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	p.mu.Lock()
	// Nunca reemplazar por un quote más viejo (polls concurrentes).
	if !p.hasLast || !q.ObservedAt.Before(p.last.ObservedAt) {
		p.last = q
		p.hasLast = true
	}
	p.mu.Unlock()

	p.subsMu.RLock()
	subs := make([]func(domain.PriceQuote), len(p.subs))
	copy(subs, p.subs)
	p.subsMu.RUnlock()
	for _, fn := range subs {
		fn(q)
	}
	return q, nil
}
