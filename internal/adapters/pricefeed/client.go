package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/clock"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultRESTBase = "https://api.binance.com"

	// Binance: 6000 weight/min; /ticker/price con símbolo pesa 2 → 50/s.
	// Usamos ~20% para no competir con otros procesos de la misma IP.
	defaultRatePerSec = 10

	maxRetries    = 2
	baseRetryWait = 200 * time.Millisecond
)

// Client es el HTTP client del ticker REST con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	clock   ports.Clock
	source  string
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewClient crea un Client. Si base está vacío usa el endpoint de producción;
// ratePerSec <= 0 usa el default.
func NewClient(base string, ratePerSec float64) *Client {
	if base == "" {
		base = defaultRESTBase
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	return &Client{
		http:    &http.Client{Timeout: 5 * time.Second},
		base:    strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 2),
		clock:   clock.New(),
		source:  "rest",
	}
}

// WithClock cambia el reloj que timestampa los quotes.
func (c *Client) WithClock(clk ports.Clock) *Client {
	c.clock = clk
	return c
}

// WithSource cambia la etiqueta Source de los quotes.
func (c *Client) WithSource(name string) *Client {
	c.source = name
	return c
}

// LatestPrice implementa ports.PriceFeed. El quote se timestampa al recibir
// la respuesta: el endpoint no devuelve hora.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.base, url.QueryEscape(strings.ToUpper(symbol)))

	var tp tickerPrice
	if err := c.get(ctx, u, &tp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.LatestPrice %s: %w", symbol, err)
	}
	observed := c.clock.Now()

	price, err := decimal.NewFromString(tp.Price)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.LatestPrice %s: parse price %q: %w", symbol, tp.Price, err)
	}
	if !price.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed.LatestPrice %s: non-positive price %s", symbol, tp.Price)
	}
	return domain.PriceQuote{Symbol: tp.Symbol, Price: price, ObservedAt: observed, Source: c.source}, nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
			resp.Body.Close()
			slog.Warn("pricefeed: rate limited by API", "status", resp.StatusCode, "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
