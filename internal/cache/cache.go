// Package cache keeps parsed dataset rows in Redis so repeated analyses of
// the same extract skip the filesystem and CSV parse.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dutylens/dutylens/internal/metrics"
	"github.com/dutylens/dutylens/internal/rules"
)

// ErrMiss is returned when the dataset is not cached.
var ErrMiss = errors.New("dataset not cached")

type RowCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr string, db int, ttl time.Duration) *RowCache {
	return &RowCache{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

// NewWithClient wraps an existing client. Tests use this with miniredis.
func NewWithClient(client *redis.Client, ttl time.Duration) *RowCache {
	return &RowCache{client: client, ttl: ttl}
}

func key(name string) string {
	return "dutylens:dataset:" + name
}

// Get returns the cached rows for a dataset, or ErrMiss.
func (c *RowCache) Get(ctx context.Context, name string) ([]rules.Row, error) {
	data, err := c.client.Get(ctx, key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheMisses.Inc()
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to read dataset cache: %w", err)
	}

	var dataRows []rules.Row
	if err := json.Unmarshal(data, &dataRows); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset: %w", err)
	}

	metrics.CacheHits.Inc()
	return dataRows, nil
}

// Put stores the rows for a dataset under the configured TTL.
func (c *RowCache) Put(ctx context.Context, name string, dataRows []rules.Row) error {
	data, err := json.Marshal(dataRows)
	if err != nil {
		return fmt.Errorf("failed to encode dataset for cache: %w", err)
	}

	if err := c.client.Set(ctx, key(name), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dataset cache: %w", err)
	}

	return nil
}

// Invalidate drops the cached rows for a dataset.
func (c *RowCache) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, key(name)).Err()
}

func (c *RowCache) Close() error {
	return c.client.Close()
}
