package ports

import "github.com/alejandrodnm/wagerbot/internal/domain"

// Metrics recibe los contadores de observabilidad del engine y la persistencia.
type Metrics interface {
	WagerPlaced(kind domain.WagerKind)
	WagerSettled(result domain.Result)
	WagerCancelled(reason string)
	PriceFetchFailed()
	StaleQuote()
	PersistFailed()
}

// NopMetrics descarta todo.
type NopMetrics struct{}

func (NopMetrics) WagerPlaced(domain.WagerKind) {}
func (NopMetrics) WagerSettled(domain.Result)   {}
func (NopMetrics) WagerCancelled(string)        {}
func (NopMetrics) PriceFetchFailed()            {}
func (NopMetrics) StaleQuote()                  {}
func (NopMetrics) PersistFailed()               {}
