package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/clock"
	"github.com/alejandrodnm/wagerbot/internal/adapters/pricefeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClient_LatestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"69000.12000000"}`))
	}))
	defer srv.Close()

	clk := clock.NewFake(t0)
	c := pricefeed.NewClient(srv.URL, 100).WithClock(clk)

	q, err := c.LatestPrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "69000.12", q.Price.String())
	assert.Equal(t, "BTCUSDT", q.Symbol)
	assert.Equal(t, t0, q.ObservedAt)
	assert.Equal(t, "rest", q.Source)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"3500"}`))
	}))
	defer srv.Close()

	q, err := pricefeed.NewClient(srv.URL, 100).LatestPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "3500", q.Price.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := pricefeed.NewClient(srv.URL, 100).LatestPrice(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"abc"}`))
	}))
	defer srv.Close()

	_, err := pricefeed.NewClient(srv.URL, 100).LatestPrice(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestClient_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pricefeed.NewClient(srv.URL, 100).LatestPrice(ctx, "BTCUSDT")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
