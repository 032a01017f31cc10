package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/application/engine"
	"github.com/alejandrodnm/wagerbot/internal/domain"
)

// Console es la capa de presentación en terminal. Implementa
// ports.SettlementPublisher; el resto de métodos los llama la CLI.
type Console struct {
	mu  sync.Mutex // countdown, poller y settlement escriben desde goroutines distintas
	out io.Writer
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

func (c *Console) stamp() string {
	return c.now().Format("15:04:05")
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// PrintPlaced muestra el wager recién creado.
func (c *Console) PrintPlaced(w domain.Wager, balance string) {
	c.println(fmt.Sprintf("[%s] placed %s | %s | stake $%s | expires %s | bal $%s",
		c.stamp(), engine.ShortID(w.ID), w.Label(), engine.FormatMoney(w.Stake),
		w.ExpiresAt.Local().Format("15:04:05"), balance))
}

// PrintCountdown es el tick de cada segundo; solo display.
func (c *Console) PrintCountdown(cd domain.Countdown) {
	c.println(fmt.Sprintf("[%s] %s resolves in %s",
		c.stamp(), engine.ShortID(cd.WagerID), engine.FormatRemaining(cd.Remaining)))
}

// PrintQuote muestra un quote del poll de display.
func (c *Console) PrintQuote(q domain.PriceQuote) {
	c.println(fmt.Sprintf("[%s] %s %s (%s)", c.stamp(), q.Symbol, engine.FormatMoney(q.Price), q.Source))
}

// PrintResolving se muestra mientras el engine busca el precio de resolución.
func (c *Console) PrintResolving(id string) {
	c.println(fmt.Sprintf("[%s] %s resolving...", c.stamp(), engine.ShortID(id)))
}

// PublishSettlement implementa ports.SettlementPublisher.
func (c *Console) PublishSettlement(_ context.Context, ev domain.SettlementEvent) error {
	c.println(c.settlementLine(ev))
	return nil
}

func (c *Console) settlementLine(ev domain.SettlementEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s ", c.stamp(), engine.ShortID(ev.WagerID))
	switch ev.Status {
	case domain.StatusCancelled:
		fmt.Fprintf(&sb, "CANCELLED (%s) | refund $%s", ev.Reason, engine.FormatMoney(ev.Stake))
	default:
		fmt.Fprintf(&sb, "%s @ %s | payout $%s | pnl %s",
			strings.ToUpper(string(ev.Result)),
			engine.FormatMoney(ev.ResolvedPrice),
			engine.FormatMoney(ev.Payout),
			engine.FormatSigned(ev.Payout.Sub(ev.Stake)))
	}
	fmt.Fprintf(&sb, " | bal $%s", engine.FormatMoney(ev.Balance))
	return sb.String()
}

// PrintError muestra un rechazo de PlaceBet al usuario.
func (c *Console) PrintError(err error) {
	c.println(fmt.Sprintf("[%s] !! %v", c.stamp(), err))
}
