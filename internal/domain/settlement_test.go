package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func directionWager(dir Direction, stake, strike string) Wager {
	return Wager{Kind: KindDirection, Direction: dir, Stake: dec(stake), Strike: dec(strike)}
}

func rangeWager(stake, low, high string) Wager {
	return Wager{Kind: KindRange, Stake: dec(stake), Low: dec(low), High: dec(high)}
}

func TestResolve_UpWins(t *testing.T) {
	// balance=1000, stake=100, Up, strike=69000, resolved=69500 → payout 190
	out := NewResolver(decimal.Zero).Resolve(directionWager(DirectionUp, "100", "69000"), dec("69500"))
	assert.True(t, out.Won)
	assert.Equal(t, "190.00", out.Payout.StringFixed(2))
	assert.Equal(t, ResultWon, out.Result())
}

func TestResolve_DownLoses(t *testing.T) {
	out := NewResolver(decimal.Zero).Resolve(directionWager(DirectionDown, "50", "3500"), dec("3550"))
	assert.False(t, out.Won)
	assert.True(t, out.Payout.IsZero())
	assert.Equal(t, ResultLost, out.Result())
}

func TestResolve_DirectionTieLosesBothWays(t *testing.T) {
	r := NewResolver(decimal.Zero)
	for _, dir := range []Direction{DirectionUp, DirectionDown} {
		out := r.Resolve(directionWager(dir, "100", "69000"), dec("69000"))
		assert.False(t, out.Won, "tie must lose for %s", dir)
		assert.True(t, out.Payout.IsZero())
	}
}

func TestResolve_DownWinsBelowStrike(t *testing.T) {
	out := NewResolver(decimal.Zero).Resolve(directionWager(DirectionDown, "50", "3500"), dec("3499.99"))
	assert.True(t, out.Won)
	assert.Equal(t, "95.00", out.Payout.StringFixed(2))
}

func TestResolve_RangeBoundsInclusive(t *testing.T) {
	r := NewResolver(decimal.Zero)
	w := rangeWager("100", "68900", "69100")

	for _, price := range []string{"68900", "69000", "69100"} {
		out := r.Resolve(w, dec(price))
		assert.True(t, out.Won, "price %s should win", price)
		assert.Equal(t, "190.00", out.Payout.StringFixed(2))
	}
	for _, price := range []string{"68899.99", "69100.01"} {
		assert.False(t, r.Resolve(w, dec(price)).Won, "price %s should lose", price)
	}
}

func TestResolve_CustomMultiplier(t *testing.T) {
	out := NewResolver(dec("2.5")).Resolve(directionWager(DirectionUp, "10", "1"), dec("2"))
	assert.True(t, out.Payout.Equal(dec("25")))
}

func TestResolve_FullPrecisionPayout(t *testing.T) {
	// 33.33 × 1.9 = 63.327, sin redondeo interno
	out := NewResolver(decimal.Zero).Resolve(directionWager(DirectionUp, "33.33", "1"), dec("2"))
	assert.True(t, out.Payout.Equal(dec("63.327")), "got %s", out.Payout)
}

func TestNetPnL_MatchesPayoutMinusStake(t *testing.T) {
	r := NewResolver(decimal.Zero)
	stake := dec("100")

	won := directionWager(DirectionUp, "100", "10")
	won.Status = StatusSettled
	won.Payout = r.Resolve(won, dec("11")).Payout
	assert.True(t, won.NetPnL().Equal(stake.Mul(r.Multiplier.Sub(decimal.NewFromInt(1)))))

	lost := directionWager(DirectionUp, "100", "10")
	lost.Status = StatusSettled
	lost.Payout = r.Resolve(lost, dec("9")).Payout
	assert.True(t, lost.NetPnL().Equal(stake.Neg()))

	cancelled := directionWager(DirectionUp, "100", "10")
	cancelled.Status = StatusCancelled
	assert.True(t, cancelled.NetPnL().IsZero())
}

func TestWon_UnknownKindLoses(t *testing.T) {
	assert.False(t, Won(Wager{Kind: "coinflip", Stake: dec("1")}, dec("1")))
}
