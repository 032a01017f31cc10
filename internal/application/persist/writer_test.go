package persist_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/wagerbot/internal/adapters/storage"
	"github.com/alejandrodnm/wagerbot/internal/application/persist"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore falla los SetMany mientras fail esté a true.
type flakyStore struct {
	*storage.Memory
	mu    sync.Mutex
	fail  bool
	calls [][]ports.Entry
}

func (f *flakyStore) SetMany(ctx context.Context, entries []ports.Entry) error {
	f.mu.Lock()
	f.calls = append(f.calls, entries)
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Memory.SetMany(ctx, entries)
}

type countingMetrics struct {
	ports.NopMetrics
	mu     sync.Mutex
	failed int
}

func (c *countingMetrics) PersistFailed() {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func flush(t *testing.T, w *persist.Writer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Flush(ctx))
}

func TestWriter_WritesInOrder(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory()}
	w := persist.NewWriter(store)
	defer w.Close()

	for _, v := range []string{"1000", "900", "1090"} {
		w.Enqueue(ports.Entry{Key: "balance", Value: v})
	}
	flush(t, w)

	v, ok, err := store.Get(context.Background(), "balance")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1090", v, "last enqueued batch wins")
	assert.EqualValues(t, 3, w.Written())
}

func TestWriter_BatchIsSingleSetMany(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory()}
	w := persist.NewWriter(store)
	defer w.Close()

	w.Enqueue(ports.Entry{Key: "balance", Value: "1"}, ports.Entry{Key: "history", Value: "[]"})
	flush(t, w)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.calls, 1)
	assert.Len(t, store.calls[0], 2)
}

func TestWriter_FailureIsCountedNotFatal(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory(), fail: true}
	m := &countingMetrics{}
	w := persist.NewWriter(store, persist.WithMetrics(m))
	defer w.Close()

	w.Enqueue(ports.Entry{Key: "balance", Value: "1"})
	flush(t, w)
	assert.EqualValues(t, 1, w.Failures())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	w.Enqueue(ports.Entry{Key: "balance", Value: "2"})
	flush(t, w)

	v, _, _ := store.Get(context.Background(), "balance")
	assert.Equal(t, "2", v)
	m.mu.Lock()
	assert.Equal(t, 1, m.failed)
	m.mu.Unlock()
}

func TestWriter_EnqueueAfterCloseIsDropped(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory()}
	w := persist.NewWriter(store)
	w.Close()
	w.Close()

	w.Enqueue(ports.Entry{Key: "balance", Value: "1"})
	assert.EqualValues(t, 1, w.Dropped())
	assert.NoError(t, w.Flush(context.Background()))
}

func TestWriter_EmptyEnqueueIgnored(t *testing.T) {
	store := &flakyStore{Memory: storage.NewMemory()}
	w := persist.NewWriter(store)
	defer w.Close()

	w.Enqueue()
	flush(t, w)
	assert.EqualValues(t, 0, w.Written())
}
