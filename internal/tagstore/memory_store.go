package tagstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"slackrelay/internal/clock"
	"slackrelay/internal/slack"
)

// MemoryStore keeps tags in process memory for single-instance mode.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	tags      slack.Tags
	expiresAt time.Time
}

// NewMemoryStore creates in-memory tag store.
// Params: clock (RealClock when nil) and entry TTL (0 keeps entries forever).
// Returns: initialized store.
func NewMemoryStore(clk clock.Clock, ttl time.Duration) *MemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryStore{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Read returns a copy of stored tags.
// Params: event id.
// Returns: tags or empty tags when absent or expired.
func (s *MemoryStore) Read(_ context.Context, eventID string) (slack.Tags, error) {
	s.mu.RLock()
	entry, ok := s.entries[eventID]
	s.mu.RUnlock()
	if !ok {
		return slack.Tags{}, nil
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.entries[eventID]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.entries, eventID)
		}
		s.mu.Unlock()
		return slack.Tags{}, nil
	}
	return maps.Clone(entry.tags), nil
}

// Write stores a copy of tags, or forgets the event when tags are empty.
// Params: event id and tags.
// Returns: nil.
func (s *MemoryStore) Write(_ context.Context, eventID string, tags slack.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(tags) == 0 {
		delete(s.entries, eventID)
		return nil
	}
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.clock.Now().Add(s.ttl)
	}
	s.entries[eventID] = memoryEntry{tags: maps.Clone(tags), expiresAt: expiresAt}
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
