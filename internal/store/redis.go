package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/whiteboard/internal/metrics"
	"github.com/eldtechnologies/whiteboard/internal/models"
)

const latestSessionTTL = 10 * time.Minute

// RedisStore handles Redis operations for caching and rate limiting.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// latestSessionKey returns the key caching a room's newest snapshot.
func latestSessionKey(roomID string) string {
	return fmt.Sprintf("session:latest:%s", roomID)
}

// GetLatestSession returns the cached snapshot for a room, or nil on a miss.
func (s *RedisStore) GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, latestSessionKey(roomID)).Bytes()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetLatestSession caches snap as its room's newest snapshot.
func (s *RedisStore) SetLatestSession(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.client.Set(ctx, latestSessionKey(snap.RoomID), data, latestSessionTTL).Err()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	return err
}

// InvalidateLatestSession drops the cached snapshot for a room.
func (s *RedisStore) InvalidateLatestSession(ctx context.Context, roomID string) error {
	start := time.Now()
	err := s.client.Del(ctx, latestSessionKey(roomID)).Err()
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	return err
}
