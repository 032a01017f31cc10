package ports

import "time"

// Clock es la fuente de tiempo del engine. Se inyecta para poder controlar
// el tiempo en tests.
type Clock interface {
	Now() time.Time

	// AfterFunc ejecuta f cuando pasa d. Stop devuelve false si ya se disparó.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker emite el instante actual cada d.
	NewTicker(d time.Duration) Ticker
}

// Timer es un callback programado que se puede cancelar.
type Timer interface {
	Stop() bool
}

// Ticker entrega ticks periódicos hasta que se llama a Stop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
