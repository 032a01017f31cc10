package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryRecord is the immutable, JSON-serializable snapshot of a Settled or
// Cancelled wager.
type HistoryRecord struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol,omitempty"`
	Kind          WagerKind        `json:"kind"`
	Direction     Direction        `json:"direction,omitempty"`
	Stake         decimal.Decimal  `json:"stake"`
	Strike        *decimal.Decimal `json:"strike,omitempty"`
	Low           *decimal.Decimal `json:"low,omitempty"`
	High          *decimal.Decimal `json:"high,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	Status        WagerStatus      `json:"status"`
	Result        Result           `json:"result"`
	ResolvedPrice *decimal.Decimal `json:"resolvedPrice"`
	Payout        decimal.Decimal  `json:"payout"`
	SettledAt     time.Time        `json:"settledAt"`
	Reason        string           `json:"reason,omitempty"`
}

// NetPnL devuelve payout − stake; un wager cancelado fue reembolsado y vale 0.
func (r HistoryRecord) NetPnL() decimal.Decimal {
	if r.Status != StatusSettled {
		return decimal.Zero
	}
	return r.Payout.Sub(r.Stake)
}

// HistoryStats es el agregado de todo el historial, para el reporte.
type HistoryStats struct {
	Total       int
	Won         int
	Lost        int
	Cancelled   int
	WinRate     float64 // sobre wagers liquidados, 0–1
	TotalStaked decimal.Decimal
	TotalPayout decimal.Decimal
	NetPnL      decimal.Decimal
	BestWin     decimal.Decimal
	WorstLoss   decimal.Decimal
	FirstAt     time.Time
	LastAt      time.Time
}

// ComputeStats agrega los records; el orden de entrada no importa.
func ComputeStats(records []HistoryRecord) HistoryStats {
	stats := HistoryStats{
		TotalStaked: decimal.Zero,
		TotalPayout: decimal.Zero,
		NetPnL:      decimal.Zero,
		BestWin:     decimal.Zero,
		WorstLoss:   decimal.Zero,
	}
	for _, r := range records {
		stats.Total++
		if stats.FirstAt.IsZero() || r.CreatedAt.Before(stats.FirstAt) {
			stats.FirstAt = r.CreatedAt
		}
		if r.SettledAt.After(stats.LastAt) {
			stats.LastAt = r.SettledAt
		}
		if r.Status == StatusCancelled {
			stats.Cancelled++
			continue
		}

		stats.TotalStaked = stats.TotalStaked.Add(r.Stake)
		stats.TotalPayout = stats.TotalPayout.Add(r.Payout)
		pnl := r.NetPnL()
		stats.NetPnL = stats.NetPnL.Add(pnl)

		switch r.Result {
		case ResultWon:
			stats.Won++
			if pnl.GreaterThan(stats.BestWin) {
				stats.BestWin = pnl
			}
		case ResultLost:
			stats.Lost++
			if pnl.LessThan(stats.WorstLoss) {
				stats.WorstLoss = pnl
			}
		}
	}
	if settled := stats.Won + stats.Lost; settled > 0 {
		stats.WinRate = float64(stats.Won) / float64(settled)
	}
	return stats
}
