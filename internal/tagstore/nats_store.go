package tagstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"slackrelay/internal/config"
	"slackrelay/internal/slack"
)

var invalidKeyChars = regexp.MustCompile(`[^-/_=.a-zA-Z0-9]`)

// NATSStore persists tags in a JetStream KV bucket.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens or creates the tags bucket.
// Params: NATS settings and bucket TTL (0 keeps entries forever).
// Returns: initialized store or setup error.
func NewNATSStore(settings config.NATSTagsConfig, ttl time.Duration) (*NATSStore, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","), nats.Name("slackrelay-tags"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "Slack correlation tags by event id",
			TTL:         ttl,
			History:     1,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open tags bucket %q: %w", settings.Bucket, err)
	}
	return &NATSStore{nc: nc, kv: kv}, nil
}

// Read loads tags for an event.
// Params: event id.
// Returns: tags, empty when absent, or read/decode error.
func (s *NATSStore) Read(_ context.Context, eventID string) (slack.Tags, error) {
	entry, err := s.kv.Get(kvKey(eventID))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return slack.Tags{}, nil
		}
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return decodeTags(entry.Value())
}

// Write stores tags for an event, or purges the key when tags are empty.
// Params: event id and tags.
// Returns: put/purge error.
func (s *NATSStore) Write(_ context.Context, eventID string, tags slack.Tags) error {
	key := kvKey(eventID)
	if len(tags) == 0 {
		if err := s.kv.Purge(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return fmt.Errorf("purge tags: %w", err)
		}
		return nil
	}
	body, err := encodeTags(tags)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(key, body); err != nil {
		return fmt.Errorf("put tags: %w", err)
	}
	return nil
}

// Close drains the NATS connection.
// Params: none.
// Returns: drain error.
func (s *NATSStore) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

// kvKey maps an event id onto the KV key alphabet.
func kvKey(eventID string) string {
	key := invalidKeyChars.ReplaceAllString(strings.TrimSpace(eventID), "_")
	if key == "" {
		return "_"
	}
	return key
}
