// Copyright 2025 James Ross

// Package cache implements the Request Cache from spec §4.3: a
// content-addressed (SHA-256 of the canonicalized URL), TTL-bounded
// store for raw provider response bytes. Grounded on the cache-manager
// reference implementation's Get/Set/metrics shape
// (other_examples/a6626e46_..._cache-manager-service.go.go) with the L1/L2
// split collapsed into a single pluggable persistence.Store, and on the
// teacher's internal/storage-backends capability/stats struct shape for
// Stats.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
)

// Entry is a Cache Entry per spec §3: fingerprint, payload, timestamps,
// and the source URL it was fetched from.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Payload     []byte    `json:"payload"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	SourceURL   string    `json:"source_url"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stats exposes the counters spec §4.3 requires.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	Size    int
	Oldest  time.Time
	Newest  time.Time
}

// Cache is the Request Cache. A nil/disabled Cache (constructed via
// NewDisabled) makes every operation a no-op reporting miss, per spec
// §4.3's "disabled when configured off" requirement.
type Cache struct {
	store    persistence.Store
	disabled bool
	hits     atomic.Int64
	misses   atomic.Int64

	mu      sync.Mutex
	oldest  time.Time
	newest  time.Time
	tracked map[string]bool
}

// New builds a Cache backed by store.
func New(store persistence.Store) *Cache {
	return &Cache{store: store, tracked: make(map[string]bool)}
}

// NewDisabled builds a Cache where every operation is a no-op miss.
func NewDisabled() *Cache {
	return &Cache{disabled: true}
}

// Fingerprint returns the SHA-256 hex digest of the canonicalized URL,
// the Cache Entry's key per spec §3.
func Fingerprint(rawURL string) string {
	canon := canonicalize(rawURL)
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}

// canonicalize normalizes a URL for fingerprinting: lowercases the host,
// drops a trailing slash, and sorts query parameters so equivalent
// requests collide on the same cache key regardless of parameter order.
func canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		q := u.Query()
		u.RawQuery = q.Encode() // url.Values.Encode sorts keys
	}
	return u.String()
}

// Get returns the cached payload for url if present and unexpired. A
// miss (absent, expired, or disabled) returns ok=false and never an
// error purely from cache absence.
func (c *Cache) Get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	if c.disabled {
		return nil, false, nil
	}
	key := Fingerprint(rawURL)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.misses.Add(1)
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		_ = c.store.Delete(ctx, key)
		c.misses.Add(1)
		c.untrack(key)
		return nil, false, nil
	}
	c.hits.Add(1)
	return entry.Payload, true, nil
}

// Set writes payload atomically under url's fingerprint. The underlying
// persistence.Store backends (memory/file/redis) all publish atomically
// (temp-then-rename for files, single SET for redis/memory), so partial
// writes are never visible to concurrent Get calls.
func (c *Cache) Set(ctx context.Context, rawURL string, payload []byte, ttl time.Duration) error {
	if c.disabled {
		return nil
	}
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	key := Fingerprint(rawURL)
	entry := Entry{
		Fingerprint: key,
		Payload:     payload,
		CachedAt:    now,
		ExpiresAt:   expiresAt,
		SourceURL:   rawURL,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// The store entry carries no TTL of its own: expiry is decided by
	// entry.ExpiresAt, so Get and CleanupExpired see and remove expired
	// entries themselves.
	if err := c.store.Set(ctx, key, data, 0); err != nil {
		return err
	}
	c.track(key, now)
	return nil
}

// CleanupExpired scans every entry in the store and removes expired ones,
// returning the count removed.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	if c.disabled {
		return 0, nil
	}
	keys, err := c.store.Keys(ctx, "")
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, key := range keys {
		data, ok, err := c.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if entry.expired(now) {
			_ = c.store.Delete(ctx, key)
			c.untrack(key)
			removed++
		}
	}
	return removed, nil
}

// Stats reports hit/miss counters and size/age bounds over entries
// tracked by this Cache instance since construction.
func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
		Size:    len(c.tracked),
		Oldest:  c.oldest,
		Newest:  c.newest,
	}
}

func (c *Cache) track(key string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked[key] = true
	if c.oldest.IsZero() || at.Before(c.oldest) {
		c.oldest = at
	}
	if c.newest.IsZero() || at.After(c.newest) {
		c.newest = at
	}
}

func (c *Cache) untrack(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracked, key)
}
