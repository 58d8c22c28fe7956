package tagstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slackrelay/internal/clock"
	"slackrelay/internal/config"
	"slackrelay/internal/slack"
)

// Store keeps correlation tags between invocations for the same event.
// Read of an unknown event yields empty tags; Write of empty tags forgets the event.
type Store interface {
	Read(ctx context.Context, eventID string) (slack.Tags, error)
	Write(ctx context.Context, eventID string, tags slack.Tags) error
	Close() error
}

// Open builds the configured tag store backend.
// Params: context for connection checks, [tags] config, and clock for the memory backend.
// Returns: store or connection/setup error.
func Open(ctx context.Context, cfg config.TagsConfig, clk clock.Clock) (Store, error) {
	ttl := time.Duration(cfg.TTLSec) * time.Second
	switch cfg.Backend {
	case config.TagsBackendMemory:
		return NewMemoryStore(clk, ttl), nil
	case config.TagsBackendNATS:
		return NewNATSStore(cfg.NATS, ttl)
	case config.TagsBackendRedis:
		return NewRedisStore(ctx, cfg.Redis, ttl)
	default:
		return nil, fmt.Errorf("unsupported tags backend %q", cfg.Backend)
	}
}

// encodeTags serializes tags with their persisted names.
func encodeTags(tags slack.Tags) ([]byte, error) {
	body, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return body, nil
}

// decodeTags parses a stored tags object.
func decodeTags(body []byte) (slack.Tags, error) {
	var tags slack.Tags
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if tags == nil {
		tags = slack.Tags{}
	}
	return tags, nil
}
