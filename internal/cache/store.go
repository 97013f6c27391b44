// internal/cache/store.go
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/javajoker/claimdesk-backend/internal/config"
)

// Store is the cache backend. Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob pattern where * spans any run of characters.
	DeleteByPattern(ctx context.Context, pattern string) error
}

// NewStore builds the backend named by the cache driver setting.
func NewStore(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig) (Store, error) {
	switch cfg.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		store := NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	default:
		cleanup := time.Duration(cfg.CleanupInterval) * time.Second
		return NewMemoryStore(cfg.TTL(), cleanup), nil
	}
}
