package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// PriceFeed devuelve la última observación de precio de un símbolo.
// Puede fallar o bloquear; el llamador acota cada intento con el contexto.
type PriceFeed interface {
	LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
}

// FreshPriceFeed lo implementan los feeds con caché: PriceSince no devuelve
// un quote cacheado observado antes de since, va aguas arriba.
type FreshPriceFeed interface {
	PriceFeed
	PriceSince(ctx context.Context, symbol string, since time.Time) (domain.PriceQuote, error)
}
