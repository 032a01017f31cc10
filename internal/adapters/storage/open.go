package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// Open elige el adapter según el driver configurado.
func Open(ctx context.Context, driver, dsn, redisAddr, keyPrefix string) (ports.KVStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStorage(dsn)
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedisStorage(ctx, redisAddr, keyPrefix)
	case "postgres":
		return NewPostgresStorage(ctx, dsn)
	}
	return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
}
