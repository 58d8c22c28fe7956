package tagstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"slackrelay/internal/clock"
	"slackrelay/internal/config"
	"slackrelay/internal/slack"
	"slackrelay/test/testutil"
)

func sampleTags() slack.Tags {
	return slack.Tags{
		{Kind: slack.TagMessageTS, Channel: "#ops"}:   "171.1",
		{Kind: slack.TagChannelID, Channel: "#ops"}:   "C1",
		{Kind: slack.TagMessageLink, Channel: "#ops"}: "https://team.slack.com/archives/C1/p1711",
	}
}

func assertSameTags(t *testing.T, got, want slack.Tags) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("tags length mismatch: got %v want %v", got, want)
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("tag %s mismatch: got %q want %q", key, got[key], value)
		}
	}
}

func TestMemoryStoreRoundTripAndForget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(nil, 0)

	empty, err := store.Read(ctx, "42")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("unknown event must read as empty tags: %v / %v", empty, err)
	}

	tags := sampleTags()
	if err := store.Write(ctx, "42", tags); err != nil {
		t.Fatalf("write: %v", err)
	}
	tags[slack.TagKey{Kind: slack.TagMessageTS, Channel: "#ops"}] = "mutated"

	got, err := store.Read(ctx, "42")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertSameTags(t, got, sampleTags())

	if err := store.Write(ctx, "42", slack.Tags{}); err != nil {
		t.Fatalf("forget: %v", err)
	}
	got, _ = store.Read(ctx, "42")
	if len(got) != 0 {
		t.Fatalf("empty write must forget the event, got %v", got)
	}
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, time.Minute)

	if err := store.Write(ctx, "7", sampleTags()); err != nil {
		t.Fatalf("write: %v", err)
	}
	clk.Advance(59 * time.Second)
	if got, _ := store.Read(ctx, "7"); len(got) != 3 {
		t.Fatalf("entry must survive before ttl, got %v", got)
	}
	clk.Advance(time.Second)
	if got, _ := store.Read(ctx, "7"); len(got) != 0 {
		t.Fatalf("entry must expire at ttl, got %v", got)
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Tags
	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Backend = "etcd"
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failGet error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := value.([]byte)
	f.values[key] = string(body)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := newFakeRedis()
	store := newRedisStore(fake, "slackrelay:tags:", time.Hour)

	if got, err := store.Read(ctx, "9"); err != nil || len(got) != 0 {
		t.Fatalf("missing key must read empty: %v / %v", got, err)
	}
	if err := store.Write(ctx, "9", sampleTags()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if fake.ttls["slackrelay:tags:9"] != time.Hour {
		t.Fatalf("ttl not applied: %v", fake.ttls)
	}
	got, err := store.Read(ctx, "9")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertSameTags(t, got, sampleTags())

	if err := store.Write(ctx, "9", nil); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok := fake.values["slackrelay:tags:9"]; ok {
		t.Fatalf("empty write must delete key")
	}

	fake.failGet = errors.New("connection reset")
	if _, err := store.Read(ctx, "9"); err == nil {
		t.Fatalf("expected read error")
	}
	if err := store.Close(); err != nil || !fake.closed {
		t.Fatalf("close must reach client")
	}
}

func TestKVKeySanitizesEventIDs(t *testing.T) {
	t.Parallel()

	if got := kvKey("12345"); got != "12345" {
		t.Fatalf("numeric id must pass through, got %q", got)
	}
	if got := kvKey(" a b*c "); got != "a_b_c" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := kvKey(""); got != "_" {
		t.Fatalf("empty id must map to placeholder, got %q", got)
	}
}

func TestNATSStoreIntegration(t *testing.T) {
	url, stop := testutil.StartLocalNATSServer(t)
	defer stop()

	ctx := context.Background()
	store, err := NewNATSStore(config.NATSTagsConfig{URL: []string{url}, Bucket: testutil.UniqueName(t, "tags")}, time.Hour)
	if err != nil {
		t.Fatalf("new nats store: %v", err)
	}
	defer store.Close()

	if got, err := store.Read(ctx, "100"); err != nil || len(got) != 0 {
		t.Fatalf("missing key must read empty: %v / %v", got, err)
	}
	if err := store.Write(ctx, "100", sampleTags()); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.Read(ctx, "100")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertSameTags(t, got, sampleTags())

	if err := store.Write(ctx, "100", slack.Tags{}); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if got, err := store.Read(ctx, "100"); err != nil || len(got) != 0 {
		t.Fatalf("purged key must read empty: %v / %v", got, err)
	}
}
