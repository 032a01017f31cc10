// Package persist serializa las escrituras best-effort del ledger y del
// historial hacia el KVStore.
//
// Cada Enqueue es un batch que se escribe con SetMany (atómico en todos los
// adapters). Un solo worker drena la cola, así que los batches llegan al store
// en el mismo orden en que se encolaron: una escritura vieja nunca pisa a una
// nueva. Los fallos se loguean y se cuentan; el estado en memoria sigue
// siendo la fuente de verdad.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 5 * time.Second
)

type request struct {
	entries []ports.Entry
	done    chan struct{} // barrera de Flush
}

// Writer implementa ports.Committer.
type Writer struct {
	store        ports.KVStore
	metrics      ports.Metrics
	writeTimeout time.Duration

	queue    chan request
	wg       sync.WaitGroup
	closed   atomic.Bool
	mu       sync.RWMutex // protege el envío contra Close
	failures atomic.Int64
	dropped  atomic.Int64
	written  atomic.Int64
}

// Option configura un Writer.
type Option func(*Writer)

// WithMetrics cuenta los fallos de persistencia.
func WithMetrics(m ports.Metrics) Option {
	return func(w *Writer) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithWriteTimeout acota cada SetMany.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.writeTimeout = d
		}
	}
}

// WithQueueSize cambia la capacidad de la cola.
func WithQueueSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.queue = make(chan request, n)
		}
	}
}

// NewWriter arranca el worker. Llamar a Close al terminar.
func NewWriter(store ports.KVStore, opts ...Option) *Writer {
	w := &Writer{
		store:        store,
		metrics:      ports.NopMetrics{},
		writeTimeout: defaultWriteTimeout,
		queue:        make(chan request, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue encola un batch sin bloquear. Si la cola está llena el batch se
// descarta: los batches siguientes llevan el estado completo.
func (w *Writer) Enqueue(entries ...ports.Entry) {
	if len(entries) == 0 {
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed.Load() {
		slog.Warn("persist: writer closed, dropping batch", "keys", keys(entries))
		w.dropped.Add(1)
		w.metrics.PersistFailed()
		return
	}

	batch := make([]ports.Entry, len(entries))
	copy(batch, entries)
	select {
	case w.queue <- request{entries: batch}:
	default:
		slog.Warn("persist: queue full, dropping batch", "keys", keys(entries))
		w.dropped.Add(1)
		w.metrics.PersistFailed()
	}
}

// Flush espera a que se hayan procesado todos los batches encolados antes
// de la llamada.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	w.mu.RLock()
	if w.closed.Load() {
		w.mu.RUnlock()
		return nil
	}
	select {
	case w.queue <- request{done: done}:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return fmt.Errorf("persist.Flush: %w", ctx.Err())
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persist.Flush: %w", ctx.Err())
	}
}

// Close drena la cola y para el worker.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed.Swap(true) {
		w.mu.Unlock()
		return
	}
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

// Failures devuelve cuántos batches fallaron al escribirse.
func (w *Writer) Failures() int64 { return w.failures.Load() }

// Dropped devuelve cuántos batches se descartaron sin intentarse.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Written devuelve cuántos batches se escribieron con éxito.
func (w *Writer) Written() int64 { return w.written.Load() }

func (w *Writer) run() {
	defer w.wg.Done()
	for req := range w.queue {
		if req.done != nil {
			close(req.done)
			continue
		}
		w.write(req.entries)
	}
}

func (w *Writer) write(entries []ports.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if err := w.store.SetMany(ctx, entries); err != nil {
		w.failures.Add(1)
		w.metrics.PersistFailed()
		slog.Error("persist: write failed",
			"keys", keys(entries),
			"err", fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err),
		)
		return
	}
	w.written.Add(1)
	slog.Debug("persist: batch written", "keys", keys(entries))
}

func keys(entries []ports.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}
