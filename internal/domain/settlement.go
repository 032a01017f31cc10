package domain

import "github.com/shopspring/decimal"

// DefaultPayoutMultiplier devuelve el stake más un 90% de beneficio.
var DefaultPayoutMultiplier = decimal.RequireFromString("1.9")

// Outcome es el resultado puro de resolver un wager contra un precio.
type Outcome struct {
	Won    bool
	Payout decimal.Decimal
}

// Result devuelve ResultWon o ResultLost.
func (o Outcome) Result() Result {
	if o.Won {
		return ResultWon
	}
	return ResultLost
}

// Resolver maps (wager, resolved price) to an outcome. It has no side effects.
type Resolver struct {
	Multiplier decimal.Decimal
}

// NewResolver crea un Resolver; un multiplicador no positivo usa el default.
func NewResolver(multiplier decimal.Decimal) Resolver {
	if !multiplier.IsPositive() {
		multiplier = DefaultPayoutMultiplier
	}
	return Resolver{Multiplier: multiplier}
}

// Resolve decides the outcome and computes the payout at full precision.
func (r Resolver) Resolve(w Wager, price decimal.Decimal) Outcome {
	won := Won(w, price)
	if !won {
		return Outcome{Won: false, Payout: decimal.Zero}
	}
	return Outcome{Won: true, Payout: w.Stake.Mul(r.Multiplier)}
}

// Won applies the win rule. Direction bets use strict inequality, so a price
// equal to the strike loses both ways. Range bets include both bounds.
func Won(w Wager, price decimal.Decimal) bool {
	switch w.Kind {
	case KindRange:
		return price.GreaterThanOrEqual(w.Low) && price.LessThanOrEqual(w.High)
	case KindDirection:
		switch w.Direction {
		case DirectionUp:
			return price.GreaterThan(w.Strike)
		case DirectionDown:
			return price.LessThan(w.Strike)
		}
	}
	return false
}
