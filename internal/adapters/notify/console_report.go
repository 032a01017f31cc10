package notify

import (
	"fmt"
	"iter"

	"github.com/alejandrodnm/wagerbot/internal/application/engine"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// maxHistoryRows limita la tabla del reporte; el agregado usa todo el historial.
const maxHistoryRows = 20

// PrintHistory imprime la tabla newest-first.
func (c *Console) PrintHistory(records iter.Seq[domain.HistoryRecord]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("ID", "Settled", "Kind", "Prediction", "Stake", "Price", "Result", "Payout", "PnL")

	rows := 0
	for r := range records {
		if rows >= maxHistoryRows {
			break
		}
		tbl.Append(
			engine.ShortID(r.ID),
			r.SettledAt.Local().Format("01-02 15:04:05"),
			string(r.Kind),
			prediction(r),
			engine.FormatMoney(r.Stake),
			resolvedLabel(r),
			resultLabel(r),
			engine.FormatMoney(r.Payout),
			engine.FormatSigned(r.NetPnL()),
		)
		rows++
	}
	if rows == 0 {
		fmt.Fprintln(c.out, "\n  No wagers yet.")
		return
	}
	tbl.Render()
}

// PrintReport imprime el resumen agregado del historial.
func (c *Console) PrintReport(stats domain.HistoryStats, balance, initial decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  WAGER REPORT\n")
	if stats.Total > 0 {
		fmt.Fprintf(c.out, "  %s to %s\n",
			stats.FirstAt.Local().Format("2006-01-02 15:04"),
			stats.LastAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(c.out, "========================================================\n\n")

	fmt.Fprintf(c.out, "  --- WAGERS ---\n")
	fmt.Fprintf(c.out, "  Total:                 %d\n", stats.Total)
	fmt.Fprintf(c.out, "  Won / Lost:            %d / %d\n", stats.Won, stats.Lost)
	fmt.Fprintf(c.out, "  Cancelled (refunded):  %d\n", stats.Cancelled)
	fmt.Fprintf(c.out, "  Win rate:              %.1f%%\n", stats.WinRate*100)

	fmt.Fprintf(c.out, "\n  --- P&L ---\n")
	fmt.Fprintf(c.out, "  Total staked:          $%s\n", engine.FormatMoney(stats.TotalStaked))
	fmt.Fprintf(c.out, "  Total payout:          $%s\n", engine.FormatMoney(stats.TotalPayout))
	fmt.Fprintf(c.out, "  Net PnL:               $%s\n", engine.FormatSigned(stats.NetPnL))
	fmt.Fprintf(c.out, "  Best win:              $%s\n", engine.FormatSigned(stats.BestWin))
	fmt.Fprintf(c.out, "  Worst loss:            $%s\n", engine.FormatSigned(stats.WorstLoss))

	fmt.Fprintf(c.out, "\n  --- BALANCE ---\n")
	fmt.Fprintf(c.out, "  Initial:               $%s\n", engine.FormatMoney(initial))
	fmt.Fprintf(c.out, "  Current:               $%s\n", engine.FormatMoney(balance))
	fmt.Fprintln(c.out)
}

func prediction(r domain.HistoryRecord) string {
	switch {
	case r.Kind == domain.KindRange && r.Low != nil && r.High != nil:
		return fmt.Sprintf("[%s, %s]", engine.FormatMoney(*r.Low), engine.FormatMoney(*r.High))
	case r.Strike != nil:
		return fmt.Sprintf("%s %s", r.Direction, engine.FormatMoney(*r.Strike))
	}
	return "-"
}

func resolvedLabel(r domain.HistoryRecord) string {
	if r.ResolvedPrice == nil {
		return "-"
	}
	return engine.FormatMoney(*r.ResolvedPrice)
}

func resultLabel(r domain.HistoryRecord) string {
	if r.Status == domain.StatusCancelled {
		return "cancelled"
	}
	return string(r.Result)
}
