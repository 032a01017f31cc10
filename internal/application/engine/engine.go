package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/shopspring/decimal"
)

// Service es la interfaz mínima que una capa de presentación necesita del engine.
// Desacopla la CLI (o cualquier otra UI) de *bet.Engine concreto.
type Service interface {
	PlaceBet(ctx context.Context, p domain.PlaceParams) (string, error)
	Cancel(wagerID string) error
	OnSettled(fn func(domain.SettlementEvent))
}

// CountdownSource emite el tick de cuenta atrás mientras hay un wager Pending.
type CountdownSource interface {
	OnTick(fn func(domain.Countdown))
}

// FormatMoney redondea a 2 decimales; el redondeo es solo de presentación.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatSigned añade el signo explícito: "+90.00", "-50.00".
func FormatSigned(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// FormatRemaining muestra segundos enteros, "0s" al expirar.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return fmt.Sprintf("%ds", int64((d+time.Second-1)/time.Second))
}

// TruncateStr trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func TruncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ShortID devuelve el primer bloque de un uuid para tablas y logs.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return TruncateStr(id, 8)
}
