package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultPriceHashKey is the redis hash holding catalog entries.
const DefaultPriceHashKey = "billing:prices"

// RedisPriceStore keeps catalog entries in a redis hash. It replaces the file
// store on deployments whose filesystem is read-only but share a redis.
type RedisPriceStore struct {
	client *redis.Client
	key    string
}

// NewRedisPriceStore creates a store on client under key
func NewRedisPriceStore(client *redis.Client, key string) *RedisPriceStore {
	if key == "" {
		key = DefaultPriceHashKey
	}
	return &RedisPriceStore{client: client, key: key}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisPriceStore) Load(ctx context.Context) (map[string]string, error) {
	prices, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}
	return prices, nil
}

func (s *RedisPriceStore) Save(ctx context.Context, prices map[string]string) error {
	if len(prices) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(prices))
	for k, v := range prices {
		values[k] = v
	}
	if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	return nil
}
