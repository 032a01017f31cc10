package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/pricefeed"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_MidPrice(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/btcusdt@bookTicker", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"u":1,"s":"BTCUSDT","b":"68999.00","B":"1.2","a":"69001.00","A":"0.5"}`))
		// Mantener abierta hasta que el cliente se vaya
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	s := pricefeed.NewStream(wsURL, "BTCUSDT")

	_, err := s.LatestPrice(context.Background(), "BTCUSDT")
	assert.Error(t, err, "no quote before the first message")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := s.LatestPrice(context.Background(), "BTCUSDT")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	q, err := s.LatestPrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "69000", q.Price.String())
	assert.Equal(t, "stream", q.Source)

	_, err = s.LatestPrice(context.Background(), "ETHUSDT")
	assert.Error(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
