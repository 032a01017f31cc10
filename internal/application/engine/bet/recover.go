package bet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/wagerbot/internal/application/history"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
)

// DefaultActiveKey es la clave del wager activo en el KVStore. Vacía cuando
// no hay ninguno.
const DefaultActiveKey = "active"

func activeEntry(key string, w domain.Wager) ports.Entry {
	b, err := json.Marshal(w.Record())
	if err != nil {
		panic(fmt.Sprintf("bet: marshal active wager: %v", err))
	}
	return ports.Entry{Key: key, Value: string(b)}
}

func clearActive(key string) ports.Entry {
	return ports.Entry{Key: key, Value: ""}
}

// RecoverActive busca un wager que quedó activo cuando el proceso murió (el
// débito se persistió pero no la liquidación) y lo cancela con ReasonRestart,
// reembolsando el stake en el mismo batch que el historial. Se llama al
// arrancar, después de ledger.Restore y history.Load y antes de crear el engine.
func RecoverActive(
	ctx context.Context,
	kv ports.KVStore,
	key string,
	l *ledger.Ledger,
	h *history.Store,
	clock ports.Clock,
	metrics ports.Metrics,
) (domain.SettlementEvent, bool, error) {
	if key == "" {
		key = DefaultActiveKey
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return domain.SettlementEvent{}, false, fmt.Errorf("bet.RecoverActive: read %q: %w", key, err)
	}
	if !ok || raw == "" {
		return domain.SettlementEvent{}, false, nil
	}

	var rec domain.HistoryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.SettlementEvent{}, false, fmt.Errorf("bet.RecoverActive: decode %q: %w", key, err)
	}
	if rec.ID == "" || !rec.Stake.IsPositive() {
		return domain.SettlementEvent{}, false, fmt.Errorf("bet.RecoverActive: %w: active wager without id or stake", domain.ErrPersistenceFailure)
	}

	// Ya liquidado: solo falta limpiar la clave.
	if h.Contains(rec.ID) {
		l.Commit(decimal.Zero, clearActive(key))
		return domain.SettlementEvent{}, false, nil
	}

	rec.Status = domain.StatusCancelled
	rec.Result = domain.ResultNone
	rec.ResolvedPrice = nil
	rec.Payout = decimal.Zero
	rec.Reason = ReasonRestart
	rec.SettledAt = clock.Now().UTC()

	entry := h.Prepend(rec)
	balance := l.Commit(rec.Stake, entry, clearActive(key))
	metrics.WagerCancelled(ReasonRestart)

	slog.Warn("bet: refunded wager left active by a previous run",
		"wager_id", rec.ID,
		"refund", rec.Stake.String(),
		"balance", balance.String(),
	)
	return domain.SettlementEvent{
		WagerID:       rec.ID,
		Status:        domain.StatusCancelled,
		Result:        domain.ResultNone,
		Stake:         rec.Stake,
		Payout:        decimal.Zero,
		ResolvedPrice: decimal.Zero,
		Balance:       balance,
		Reason:        ReasonRestart,
		At:            rec.SettledAt,
	}, true, nil
}
