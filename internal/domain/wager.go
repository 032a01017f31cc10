package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WagerKind distingue las dos variantes de apuesta que soporta el engine.
type WagerKind string

const (
	KindDirection WagerKind = "direction" // Up/Down contra el strike
	KindRange     WagerKind = "range"     // banda inclusiva [low, high]
)

// ParseKind convierte el string de config/CLI en un WagerKind.
func ParseKind(s string) (WagerKind, error) {
	switch WagerKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDirection:
		return KindDirection, nil
	case KindRange:
		return KindRange, nil
	}
	return "", fmt.Errorf("%w: unknown wager kind %q", ErrInvalidWager, s)
}

// Direction es la predicción de una apuesta direccional.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection acepta "up"/"down" sin distinguir mayúsculas.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidWager, s)
}

// WagerStatus is the lifecycle state of a wager.
type WagerStatus string

const (
	StatusPending   WagerStatus = "pending"
	StatusResolving WagerStatus = "resolving"
	StatusSettled   WagerStatus = "settled"
	StatusCancelled WagerStatus = "cancelled"
)

// IsFinal reports whether the wager can no longer change.
func (s WagerStatus) IsFinal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// IsActive reports whether the wager occupies the engine's active slot.
func (s WagerStatus) IsActive() bool {
	return s == StatusPending || s == StatusResolving
}

// Result is the outcome of a settled wager. Empty until Settled.
type Result string

const (
	ResultNone Result = ""
	ResultWon  Result = "won"
	ResultLost Result = "lost"
)

// MarshalJSON serializa ResultNone como null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r == ResultNone {
		return []byte("null"), nil
	}
	return []byte(`"` + string(r) + `"`), nil
}

// Wager is a single bet instance. Only the engine mutates it; once Settled or
// Cancelled it is frozen into a HistoryRecord.
type Wager struct {
	ID        string
	Symbol    string
	Kind      WagerKind
	Direction Direction       // solo KindDirection
	Stake     decimal.Decimal // inmutable
	Strike    decimal.Decimal // KindDirection
	Low       decimal.Decimal // KindRange
	High      decimal.Decimal // KindRange

	CreatedAt time.Time
	Duration  time.Duration
	ExpiresAt time.Time

	Status        WagerStatus
	Result        Result
	ResolvedPrice decimal.Decimal
	ResolvedAt    time.Time // ObservedAt del quote usado para resolver
	Payout        decimal.Decimal
	SettledAt     time.Time
	CancelReason  string

	// Generation tags the expiry callback scheduled for this wager.
	Generation uint64
}

// DurationSeconds devuelve la duración en segundos enteros.
func (w Wager) DurationSeconds() int64 {
	return int64(w.Duration / time.Second)
}

// Remaining devuelve el tiempo hasta la expiración, nunca negativo.
func (w Wager) Remaining(now time.Time) time.Duration {
	d := w.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// NetPnL is payout − stake for a settled wager and zero for a cancelled one
// (the stake was refunded).
func (w Wager) NetPnL() decimal.Decimal {
	if w.Status != StatusSettled {
		return decimal.Zero
	}
	return w.Payout.Sub(w.Stake)
}

// Label describe la predicción en una línea para logs y consola.
func (w Wager) Label() string {
	if w.Kind == KindRange {
		return fmt.Sprintf("%s in [%s, %s]", w.Symbol, w.Low.StringFixed(2), w.High.StringFixed(2))
	}
	return fmt.Sprintf("%s %s %s", w.Symbol, strings.ToUpper(string(w.Direction)), w.Strike.StringFixed(2))
}

// Record congela el wager en un HistoryRecord inmutable.
func (w Wager) Record() HistoryRecord {
	rec := HistoryRecord{
		ID:        w.ID,
		Symbol:    w.Symbol,
		Kind:      w.Kind,
		Direction: w.Direction,
		Stake:     w.Stake,
		CreatedAt: w.CreatedAt.UTC(),
		ExpiresAt: w.ExpiresAt.UTC(),
		Status:    w.Status,
		Result:    w.Result,
		Payout:    w.Payout,
		SettledAt: w.SettledAt.UTC(),
		Reason:    w.CancelReason,
	}
	switch w.Kind {
	case KindRange:
		low, high := w.Low, w.High
		rec.Low, rec.High = &low, &high
	default:
		strike := w.Strike
		rec.Strike = &strike
	}
	if w.Status == StatusSettled {
		price := w.ResolvedPrice
		rec.ResolvedPrice = &price
	}
	return rec
}

// PlaceParams es lo que la capa de presentación envía a PlaceBet.
type PlaceParams struct {
	Stake     decimal.Decimal
	Duration  time.Duration   // 0 → duración por defecto del engine
	Direction Direction       // apuestas direccionales
	Band      decimal.Decimal // semi-ancho de la banda en apuestas de rango; 0 → default
}

// ValidateStake rejects stakes that are not strictly positive.
func ValidateStake(stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return fmt.Errorf("%w: stake must be positive, got %s", ErrInvalidStake, stake.String())
	}
	return nil
}

// ParseStake convierte la entrada del usuario en un stake válido.
func ParseStake(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidStake, s)
	}
	if err := ValidateStake(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
