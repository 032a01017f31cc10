package pricefeed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/pricefeed"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedFeed struct {
	price string
	at    time.Time
	err   error
	delay time.Duration
}

func (f fixedFeed) LatestPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.PriceQuote{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.PriceQuote{}, f.err
	}
	return domain.PriceQuote{Symbol: symbol, Price: decimal.RequireFromString(f.price), ObservedAt: f.at}, nil
}

func TestComposite_MedianOdd(t *testing.T) {
	c := pricefeed.NewComposite(
		fixedFeed{price: "69010", at: t0.Add(2 * time.Second)},
		fixedFeed{price: "68990", at: t0.Add(time.Second)},
		fixedFeed{price: "69500", at: t0.Add(3 * time.Second)},
	)
	q, err := c.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "69010", q.Price.String())
	assert.Equal(t, t0.Add(time.Second), q.ObservedAt, "oldest used observation")
	assert.Equal(t, "median(3)", q.Source)
}

func TestComposite_MedianEvenSkipsFailures(t *testing.T) {
	c := pricefeed.NewComposite(
		fixedFeed{price: "100", at: t0},
		fixedFeed{err: errors.New("down")},
		fixedFeed{price: "101", at: t0},
	)
	q, err := c.LatestPrice(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "100.5", q.Price.String())
}

func TestComposite_AllFail(t *testing.T) {
	c := pricefeed.NewComposite(
		fixedFeed{err: errors.New("a down")},
		fixedFeed{err: errors.New("b down")},
	)
	_, err := c.LatestPrice(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")

	_, err = pricefeed.NewComposite().LatestPrice(context.Background(), "X")
	assert.Error(t, err)
}

func TestComposite_SlowFeedBoundedByContext(t *testing.T) {
	c := pricefeed.NewComposite(
		fixedFeed{price: "100", at: t0},
		fixedFeed{price: "999", at: t0, delay: time.Minute},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	q, err := c.LatestPrice(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "100", q.Price.String())
}
