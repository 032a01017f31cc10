package domain

import "errors"

// Rejections returned synchronously by PlaceBet. None of them mutate state.
var (
	ErrInvalidStake         = errors.New("invalid stake")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateActiveWager = errors.New("a wager is already pending or resolving")
	ErrInvalidWager         = errors.New("invalid wager parameters")
)

// Errores internos de resolución y persistencia.
var (
	ErrPriceFeedUnavailable = errors.New("price feed unavailable")
	ErrStaleQuote           = errors.New("quote observed before wager expiry")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrWagerNotFound        = errors.New("wager not found")
)
