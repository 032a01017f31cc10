package notify_test

import (
	"bytes"
	"context"
	"slices"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/notify"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestConsole_SettlementWon(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	err := n.PublishSettlement(context.Background(), domain.SettlementEvent{
		WagerID:       "5f2b7c1e-aaaa-bbbb-cccc-ddddeeeeffff",
		Status:        domain.StatusSettled,
		Result:        domain.ResultWon,
		Stake:         dec("100"),
		Payout:        dec("190"),
		ResolvedPrice: dec("69500"),
		Balance:       dec("1090"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "5f2b7c1e")
	assert.Contains(t, out, "WON @ 69500.00")
	assert.Contains(t, out, "payout $190.00")
	assert.Contains(t, out, "pnl +90.00")
	assert.Contains(t, out, "bal $1090.00")
}

func TestConsole_SettlementCancelled(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	require.NoError(t, n.PublishSettlement(context.Background(), domain.SettlementEvent{
		WagerID: "w1",
		Status:  domain.StatusCancelled,
		Stake:   dec("100"),
		Balance: dec("1000"),
		Reason:  "price_feed_unavailable",
	}))
	assert.Contains(t, buf.String(), "CANCELLED (price_feed_unavailable) | refund $100.00")
}

func TestConsole_Countdown(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintCountdown(domain.Countdown{WagerID: "abc-def", Remaining: 42 * time.Second})
	assert.Contains(t, buf.String(), "abc resolves in 42s")
}

func TestConsole_HistoryAndReport(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	strike, resolved := dec("69000"), dec("69500")
	low, high := dec("68900"), dec("69100")
	records := []domain.HistoryRecord{
		{ID: "aaaa1111-x", Kind: domain.KindDirection, Direction: domain.DirectionUp, Stake: dec("100"),
			Strike: &strike, Status: domain.StatusSettled, Result: domain.ResultWon,
			ResolvedPrice: &resolved, Payout: dec("190")},
		{ID: "bbbb2222-x", Kind: domain.KindRange, Stake: dec("50"), Low: &low, High: &high,
			Status: domain.StatusCancelled, Payout: decimal.Zero},
	}

	n.PrintHistory(slices.Values(records))
	out := buf.String()
	assert.Contains(t, out, "aaaa1111")
	assert.Contains(t, out, "up 69000.00")
	assert.Contains(t, out, "[68900.00, 69100.00]")
	assert.Contains(t, out, "cancelled")
	assert.Contains(t, out, "+90.00")

	buf.Reset()
	n.PrintReport(domain.ComputeStats(records), dec("1090"), dec("1000"))
	out = buf.String()
	assert.Contains(t, out, "WAGER REPORT")
	assert.Contains(t, out, "Won / Lost:            1 / 0")
	assert.Contains(t, out, "Cancelled (refunded):  1")
	assert.Contains(t, out, "Win rate:              100.0%")
	assert.Contains(t, out, "Current:               $1090.00")
}

func TestConsole_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintHistory(slices.Values([]domain.HistoryRecord(nil)))
	assert.Contains(t, buf.String(), "No wagers yet")
}
