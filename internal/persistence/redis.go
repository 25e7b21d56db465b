package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

// RedisStore keeps snapshots in redis for sharing between processes. A zero
// TTL keeps snapshots until overwritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Ping verifies connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SaveRegime stores the detector snapshot.
func (r *RedisStore) SaveRegime(ctx context.Context, name string, m *regime.Model) error {
	return r.set(ctx, r.key("regime", name), m)
}

// LoadRegime fetches and validates a detector snapshot.
func (r *RedisStore) LoadRegime(ctx context.Context, name string) (*regime.Model, error) {
	var m regime.Model
	if err := r.get(ctx, r.key("regime", name), &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("regime snapshot %q: %w", name, err)
	}
	return &m, nil
}

// SavePredictor stores the predictor snapshot.
func (r *RedisStore) SavePredictor(ctx context.Context, name string, s *predict.Snapshot) error {
	return r.set(ctx, r.key("predictor", name), s)
}

// LoadPredictor fetches and validates a predictor snapshot.
func (r *RedisStore) LoadPredictor(ctx context.Context, name string) (*predict.Snapshot, error) {
	var s predict.Snapshot
	if err := r.get(ctx, r.key("predictor", name), &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("predictor snapshot %q: %w", name, err)
	}
	return &s, nil
}

func (r *RedisStore) key(kind, name string) string {
	return fmt.Sprintf("quantfuse:snapshot:%s:%s", kind, name)
}

func (r *RedisStore) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) get(ctx context.Context, key string, v interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}
