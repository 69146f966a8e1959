package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// RedisCache shares postal lookups between storefront instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r RedisCache) Get(ctx context.Context, key string) (*domain.AddressFragment, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var fragment domain.AddressFragment
	if err := json.Unmarshal(data, &fragment); err != nil {
		return nil, fmt.Errorf("unmarshal postal fragment failed: %w", err)
	}

	return &fragment, nil
}

func (r RedisCache) Set(ctx context.Context, key string, fragment *domain.AddressFragment) error {
	data, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("marshal postal fragment failed: %w", err)
	}

	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("postal:%s", key)
}
