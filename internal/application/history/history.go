// Package history keeps the ordered log of finished wagers.
//
// En memoria se guarda oldest-first (append O(1)); hacia fuera, tanto la
// iteración como el JSON persistido van newest-first. Load invierte el orden,
// así que un ciclo persist → restart → Load devuelve exactamente lo mismo.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// DefaultKey es la clave del historial en el KVStore.
const DefaultKey = "history"

// Store es el historial de wagers Settled/Cancelled.
type Store struct {
	mu        sync.RWMutex
	records   []domain.HistoryRecord // oldest-first
	index     map[string]struct{}
	key       string
	committer ports.Committer
}

// New crea un historial vacío.
func New(key string, committer ports.Committer) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{key: key, committer: committer, index: make(map[string]struct{})}
}

// Load lee el historial persistido. Datos ausentes o corruptos dan un
// historial vacío; nunca falla el arranque.
func Load(ctx context.Context, kv ports.KVStore, key string, committer ports.Committer) *Store {
	s := New(key, committer)

	raw, ok, err := kv.Get(ctx, s.key)
	if err != nil {
		slog.Warn("history: could not read, starting empty", "key", s.key, "err", err)
		return s
	}
	if !ok || raw == "" {
		return s
	}

	var newestFirst []domain.HistoryRecord
	if err := json.Unmarshal([]byte(raw), &newestFirst); err != nil {
		slog.Warn("history: corrupt data, starting empty", "key", s.key, "err", err)
		return s
	}

	s.records = make([]domain.HistoryRecord, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		s.records = append(s.records, newestFirst[i])
		s.index[newestFirst[i].ID] = struct{}{}
	}
	slog.Info("history: loaded", "records", len(s.records))
	return s
}

// Prepend añade rec como el más reciente y devuelve la entrada a persistir,
// sin encolarla. Lo usa el engine para escribirla junto con el balance.
func (s *Store) Prepend(rec domain.HistoryRecord) ports.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.index[rec.ID] = struct{}{}
	return s.entryLocked()
}

// Append añade rec y persiste el historial completo. Un fallo de
// persistencia no revierte el estado en memoria.
func (s *Store) Append(rec domain.HistoryRecord) {
	entry := s.Prepend(rec)
	if s.committer != nil {
		s.committer.Enqueue(entry)
	}
}

// Contains reports whether a record with id exists.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Len devuelve el número de records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records devuelve una copia newest-first.
func (s *Store) Records() []domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.records)
}

// All itera newest-first sobre un snapshot; se puede recorrer las veces que haga falta.
func (s *Store) All() iter.Seq[domain.HistoryRecord] {
	return func(yield func(domain.HistoryRecord) bool) {
		for _, rec := range s.Records() {
			if !yield(rec) {
				return
			}
		}
	}
}

// Stats agrega todo el historial.
func (s *Store) Stats() domain.HistoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeStats(s.records)
}

func (s *Store) entryLocked() ports.Entry {
	b, err := json.Marshal(newestFirst(s.records))
	if err != nil {
		// HistoryRecord solo tiene tipos serializables
		panic(fmt.Sprintf("history: marshal records: %v", err))
	}
	return ports.Entry{Key: s.key, Value: string(b)}
}

func newestFirst(records []domain.HistoryRecord) []domain.HistoryRecord {
	out := make([]domain.HistoryRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out
}
