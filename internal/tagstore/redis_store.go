package tagstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"slackrelay/internal/config"
	"slackrelay/internal/slack"
)

// redisCommands is the subset of the Redis client used by RedisStore.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore persists tags as JSON strings under a key prefix.
type RedisStore struct {
	client redisCommands
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection.
// Params: context for the ping, Redis settings, and key TTL (0 keeps keys forever).
// Returns: store or connection error.
func NewRedisStore(ctx context.Context, settings config.RedisTagsConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Addr,
		Password: settings.Password,
		DB:       settings.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", settings.Addr, err)
	}
	return newRedisStore(client, settings.Prefix, ttl), nil
}

func newRedisStore(client redisCommands, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Read loads tags for an event.
// Params: event id.
// Returns: tags, empty when absent, or read/decode error.
func (s *RedisStore) Read(ctx context.Context, eventID string) (slack.Tags, error) {
	body, err := s.client.Get(ctx, s.prefix+eventID).Bytes()
	if errors.Is(err, redis.Nil) {
		return slack.Tags{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return decodeTags(body)
}

// Write stores tags for an event, or deletes the key when tags are empty.
// Params: event id and tags.
// Returns: set/del error.
func (s *RedisStore) Write(ctx context.Context, eventID string, tags slack.Tags) error {
	key := s.prefix + eventID
	if len(tags) == 0 {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		return nil
	}
	body, err := encodeTags(tags)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
