// Package metrics expone los contadores del engine en Prometheus.
package metrics

import (
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wagerbot"

// Prometheus implementa ports.Metrics.
type Prometheus struct {
	placed        *prometheus.CounterVec
	settled       *prometheus.CounterVec
	cancelled     *prometheus.CounterVec
	fetchFailures prometheus.Counter
	persistFails  prometheus.Counter
	staleQuotes   prometheus.Counter
}

// New crea los contadores y los registra en reg.
func New(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_placed_total", Help: "wagers aceptados por PlaceBet",
		}, []string{"kind"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_settled_total", Help: "wagers liquidados por resultado",
		}, []string{"result"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_cancelled_total", Help: "wagers cancelados y reembolsados",
		}, []string{"reason"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_fetch_failures_total", Help: "intentos fallidos de obtener precio",
		}),
		persistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persist_failures_total", Help: "batches no persistidos",
		}),
		staleQuotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_quotes_total", Help: "quotes descartados por ser anteriores a la expiración",
		}),
	}
	reg.MustRegister(m.placed, m.settled, m.cancelled, m.fetchFailures, m.persistFails, m.staleQuotes)
	return m
}

func (m *Prometheus) WagerPlaced(kind domain.WagerKind) { m.placed.WithLabelValues(string(kind)).Inc() }
func (m *Prometheus) WagerSettled(r domain.Result)      { m.settled.WithLabelValues(string(r)).Inc() }
func (m *Prometheus) WagerCancelled(reason string)      { m.cancelled.WithLabelValues(reason).Inc() }
func (m *Prometheus) PriceFetchFailed()                 { m.fetchFailures.Inc() }
func (m *Prometheus) StaleQuote()                       { m.staleQuotes.Inc() }
func (m *Prometheus) PersistFailed()                    { m.persistFails.Inc() }
