// Package ledger owns the account balance. Every mutation goes through a
// single mutex and is persisted best-effort through a ports.Committer.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultKey es la clave del balance en el KVStore.
const DefaultKey = "balance"

// Reservation es el comprobante de un débito.
type Reservation struct {
	ID     string
	Amount decimal.Decimal
}

// Ledger guarda el balance. Nunca es negativo.
type Ledger struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	key       string
	committer ports.Committer
}

// New crea un ledger con el balance dado. committer puede ser nil (sin persistencia).
func New(initial decimal.Decimal, key string, committer ports.Committer) *Ledger {
	if initial.IsNegative() {
		initial = decimal.Zero
	}
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{balance: initial, key: key, committer: committer}
}

// Restore lee el balance persistido. Si no existe o no se puede parsear,
// arranca con initial.
func Restore(ctx context.Context, kv ports.KVStore, key string, initial decimal.Decimal, committer ports.Committer) *Ledger {
	l := New(initial, key, committer)

	raw, ok, err := kv.Get(ctx, l.key)
	switch {
	case err != nil:
		slog.Warn("ledger: could not read balance, using initial", "initial", initial.String(), "err", err)
		return l
	case !ok:
		slog.Info("ledger: no persisted balance, using initial", "initial", initial.String())
		return l
	}

	bal, err := decimal.NewFromString(raw)
	if err != nil || bal.IsNegative() {
		slog.Warn("ledger: corrupt persisted balance, using initial", "raw", raw, "initial", initial.String())
		return l
	}
	l.balance = bal
	slog.Info("ledger: balance restored", "balance", bal.String())
	return l
}

// Debit resta amount del balance y persiste el balance junto con extra en
// un solo batch.
func (l *Ledger) Debit(amount decimal.Decimal, extra ...ports.Entry) (Reservation, error) {
	if err := domain.ValidateStake(amount); err != nil {
		return Reservation{}, fmt.Errorf("ledger.Debit: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.GreaterThan(l.balance) {
		return Reservation{}, fmt.Errorf("ledger.Debit: %w: stake %s exceeds balance %s",
			domain.ErrInsufficientFunds, amount.String(), l.balance.String())
	}
	l.balance = l.balance.Sub(amount)
	l.persistLocked(extra...)
	return Reservation{ID: uuid.NewString(), Amount: amount}, nil
}

// Credit suma amount al balance. Importes no positivos se ignoran.
func (l *Ledger) Credit(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = l.balance.Add(amount)
	l.persistLocked()
}

// Commit acredita credit (puede ser cero) y persiste el balance junto con
// extra en un solo batch. Devuelve el balance resultante.
func (l *Ledger) Commit(credit decimal.Decimal, extra ...ports.Entry) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	if credit.IsPositive() {
		l.balance = l.balance.Add(credit)
	}
	l.persistLocked(extra...)
	return l.balance
}

// Balance devuelve un snapshot del balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// CanAfford reports whether amount fits in the current balance.
func (l *Ledger) CanAfford(amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return amount.LessThanOrEqual(l.balance)
}

// Encolar bajo el lock mantiene el orden de las escrituras igual al de las mutaciones.
func (l *Ledger) persistLocked(extra ...ports.Entry) {
	if l.committer == nil {
		return
	}
	entries := make([]ports.Entry, 0, 1+len(extra))
	entries = append(entries, ports.Entry{Key: l.key, Value: l.balance.String()})
	entries = append(entries, extra...)
	l.committer.Enqueue(entries...)
}
