package storage

import (
	"context"
	"sync"

	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// Memory es un KVStore en memoria para dry-run y tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory crea un store vacío.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) SetMany(_ context.Context, entries []ports.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.data[e.Key] = e.Value
	}
	return nil
}

func (m *Memory) Close() error { return nil }
