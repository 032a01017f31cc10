package main

import (
	"github.com/alejandrodnm/wagerbot/config"
	"github.com/alejandrodnm/wagerbot/internal/adapters/notify"
	"github.com/alejandrodnm/wagerbot/internal/application/history"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
)

func printReport(console *notify.Console, h *history.Store, l *ledger.Ledger, cfg *config.Config) {
	console.PrintHistory(h.All())
	console.PrintReport(h.Stats(), l.Balance(), cfg.InitialBalance())
}
