package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/wagerbot/internal/adapters/storage"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_SetAndGet(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "balance", "1000"))
	require.NoError(t, db.Set(ctx, "balance", "1090"))

	v, ok, err := db.Get(ctx, "balance")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1090", v)
}

func TestSQLiteStorage_GetMissing(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSQLiteStorage_SetMany(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	err = db.SetMany(ctx, []ports.Entry{
		{Key: "balance", Value: "950"},
		{Key: "history", Value: `[{"id":"a"}]`},
	})
	require.NoError(t, err)

	bal, _, _ := db.Get(ctx, "balance")
	hist, _, _ := db.Get(ctx, "history")
	assert.Equal(t, "950", bal)
	assert.Equal(t, `[{"id":"a"}]`, hist)

	// Sin entradas no hace nada
	assert.NoError(t, db.SetMany(ctx, nil))
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagerbot.db")
	ctx := context.Background()

	db, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "balance", "1234.5"))
	require.NoError(t, db.Close())

	db, err = storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.Get(ctx, "balance")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234.5", v)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), "etcd", "", "", "")
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := storage.Open(context.Background(), "memory", "", "", "")
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", "v"))
	v, ok, _ := s.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
