package pricefeed

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
)

// RandomWalk es un feed determinista para dry-run: cada llamada mueve el
// precio un paso gaussiano de volatilidad vol (fracción del precio).
type RandomWalk struct {
	clock ports.Clock
	vol   float64

	mu    sync.Mutex
	rng   *rand.Rand
	price decimal.Decimal
}

// NewRandomWalk arranca en start con la semilla dada.
func NewRandomWalk(clk ports.Clock, start decimal.Decimal, vol float64, seed int64) *RandomWalk {
	if vol <= 0 {
		vol = 0.0005
	}
	return &RandomWalk{
		clock: clk,
		vol:   vol,
		rng:   rand.New(rand.NewSource(seed)),
		price: start,
	}
}

// LatestPrice implementa ports.PriceFeed.
func (r *RandomWalk) LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.PriceQuote{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	step := decimal.NewFromFloat(1 + r.rng.NormFloat64()*r.vol)
	next := r.price.Mul(step).Round(2)
	if next.IsPositive() {
		r.price = next
	}
	return domain.PriceQuote{
		Symbol:     strings.ToUpper(symbol),
		Price:      r.price,
		ObservedAt: r.clock.Now(),
		Source:     "sim",
	}, nil
}
