package pricefeed

// composite.go: mediana de varias fuentes consultadas en paralelo.
//
// Una fuente caída o lenta no bloquea a las demás: cada una corre en su
// goroutine con el ctx del llamador. El quote resultante lleva el ObservedAt
// más antiguo de los usados, así que la regla "observado en o después de la
// expiración" sigue valiendo para la mediana.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
)

// Composite consulta varias fuentes y devuelve la mediana.
type Composite struct {
	feeds []ports.PriceFeed
}

// NewComposite crea un Composite sobre feeds.
func NewComposite(feeds ...ports.PriceFeed) *Composite {
	return &Composite{feeds: feeds}
}

// LatestPrice implementa ports.PriceFeed.
func (c *Composite) LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	if len(c.feeds) == 0 {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.Composite: no feeds configured")
	}

	type result struct {
		quote domain.PriceQuote
		err   error
	}
	resultCh := make(chan result, len(c.feeds))

	var wg sync.WaitGroup
	for _, f := range c.feeds {
		wg.Add(1)
		go func(f ports.PriceFeed) {
			defer wg.Done()
			q, err := f.LatestPrice(ctx, symbol)
			resultCh <- result{quote: q, err: err}
		}(f)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var quotes []domain.PriceQuote
	var errs []error
	for r := range resultCh {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if !r.quote.Price.IsPositive() {
			continue
		}
		quotes = append(quotes, r.quote)
	}

	if len(quotes) == 0 {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.Composite: all %d feeds failed: %w", len(c.feeds), errors.Join(errs...))
	}
	if len(errs) > 0 {
		slog.Debug("pricefeed: composite partial failure", "ok", len(quotes), "failed", len(errs))
	}
	return medianQuote(symbol, quotes), nil
}

func medianQuote(symbol string, quotes []domain.PriceQuote) domain.PriceQuote {
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Price.LessThan(quotes[j].Price) })

	var price decimal.Decimal
	n := len(quotes)
	if n%2 == 0 {
		price = quotes[n/2-1].Price.Add(quotes[n/2].Price).Div(decimal.NewFromInt(2))
	} else {
		price = quotes[n/2].Price
	}

	var oldest time.Time
	for _, q := range quotes {
		if oldest.IsZero() || q.ObservedAt.Before(oldest) {
			oldest = q.ObservedAt
		}
	}
	return domain.PriceQuote{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: oldest,
		Source:     fmt.Sprintf("median(%d)", n),
	}
}
