package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implementa ports.KVStore sobre Redis. Todas las claves llevan
// un prefijo para poder compartir la instancia entre sesiones.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage conecta y hace ping.
func NewRedisStorage(ctx context.Context, addr, prefix string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("storage.NewRedisStorage: ping %s: %w", addr, err)
	}
	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (r *RedisStorage) key(k string) string { return r.prefix + k }

// Get devuelve ok=false si la clave no existe.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage.RedisStorage.Get %q: %w", key, err)
	}
	return v, true, nil
}

// Set escribe sin TTL.
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("storage.RedisStorage.Set %q: %w", key, err)
	}
	return nil
}

// SetMany escribe dentro de MULTI/EXEC.
func (r *RedisStorage) SetMany(ctx context.Context, entries []ports.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, r.key(e.Key), e.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.RedisStorage.SetMany: %w", err)
	}
	return nil
}

// Close cierra el cliente.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
