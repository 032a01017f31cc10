package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote es una observación de precio con el instante en que se observó.
type PriceQuote struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// ObservedBefore reports whether the quote predates t.
func (q PriceQuote) ObservedBefore(t time.Time) bool {
	return q.ObservedAt.Before(t)
}

// SettlementEvent is emitted once per wager when it leaves the active slot,
// either Settled or Cancelled.
type SettlementEvent struct {
	WagerID       string          `json:"wagerId"`
	Status        WagerStatus     `json:"status"`
	Result        Result          `json:"result"`
	Stake         decimal.Decimal `json:"stake"`
	Payout        decimal.Decimal `json:"payout"`
	ResolvedPrice decimal.Decimal `json:"resolvedPrice"`
	Balance       decimal.Decimal `json:"balance"`
	Reason        string          `json:"reason,omitempty"`
	At            time.Time       `json:"at"`
}

// Countdown is the observational tick emitted every second while a wager is
// Pending. It never affects settlement.
type Countdown struct {
	WagerID   string
	Remaining time.Duration
	ExpiresAt time.Time
}
