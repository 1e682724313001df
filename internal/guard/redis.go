package guard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicops/trainingdesk/internal/metrics"
	"github.com/clinicops/trainingdesk/internal/models"
)

// RedisStore keeps markers in Redis. Markers expire after ttl, which bounds
// them to the browsing session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func observeRedis(start time.Time) {
	metrics.GuardStoreLatency.WithLabelValues("redis").Observe(time.Since(start).Seconds())
}

func (s *RedisStore) Get(ctx context.Context, key string) (models.GuardState, error) {
	defer observeRedis(time.Now())
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return models.GuardAbsent, nil
	}
	if err != nil {
		return models.GuardAbsent, err
	}
	return models.GuardState(v), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, state models.GuardState) error {
	defer observeRedis(time.Now())
	return s.client.Set(ctx, key, string(state), s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	defer observeRedis(time.Now())
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, state models.GuardState) (bool, error) {
	defer observeRedis(time.Now())
	return s.client.SetNX(ctx, key, string(state), s.ttl).Result()
}
