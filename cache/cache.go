// Package cache provides the in-memory response cache used by the tracker
// transport.
//
// Entries are raw response bodies keyed by request identity. Each entry
// carries its own expiry chosen from a TTL tier; expired entries are dropped
// lazily on the next Get. Mutations remove every entry under a resource
// prefix with Invalidate.
//
// The cache is purely a latency optimization. A nil *Cache is valid and
// behaves as an always-empty cache.
package cache

import (
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Tier is a named TTL class chosen per endpoint by data volatility.
type Tier int

// TTL tiers, from most to least volatile.
const (
	TierShort Tier = iota
	TierMedium
	TierLong
	TierVeryLong
)

// Default tier durations.
const (
	DefaultShortTTL    = 2 * time.Minute
	DefaultMediumTTL   = 10 * time.Minute
	DefaultLongTTL     = 30 * time.Minute
	DefaultVeryLongTTL = 8 * time.Hour
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierShort:
		return "short"
	case TierMedium:
		return "medium"
	case TierLong:
		return "long"
	case TierVeryLong:
		return "very_long"
	default:
		return "unknown"
	}
}

// TTLs maps tiers to durations. Zero values fall back to the defaults.
type TTLs struct {
	Short    time.Duration `yaml:"short,omitempty"`
	Medium   time.Duration `yaml:"medium,omitempty"`
	Long     time.Duration `yaml:"long,omitempty"`
	VeryLong time.Duration `yaml:"very_long,omitempty"`
}

// Duration returns the TTL for a tier.
func (t TTLs) Duration(tier Tier) time.Duration {
	pick := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	switch tier {
	case TierMedium:
		return pick(t.Medium, DefaultMediumTTL)
	case TierLong:
		return pick(t.Long, DefaultLongTTL)
	case TierVeryLong:
		return pick(t.VeryLong, DefaultVeryLongTTL)
	default:
		return pick(t.Short, DefaultShortTTL)
	}
}

type entry struct {
	value   []byte
	expires time.Time
}

// Cache is a TTL key/value store. It is safe for concurrent use; racing
// Set calls for the same key are harmless since identical requests
// produce identical values.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttls    TTLs
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTLs overrides tier durations.
func WithTTLs(ttls TTLs) Option {
	return func(c *Cache) {
		c.ttls = ttls
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		cacheMisses.Inc()
		return nil, false
	}

	if !c.now().Before(e.expires) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

// SetTier stores value under key for the tier's TTL.
func (c *Cache) SetTier(key string, value []byte, tier Tier) {
	if c == nil {
		return
	}
	c.Set(key, value, c.TTL(tier))
}

// TTL returns the configured duration for tier.
func (c *Cache) TTL(tier Tier) time.Duration {
	if c == nil {
		return 0
	}
	return c.ttls.Duration(tier)
}

// Invalidate removes every entry whose key starts with prefix at a segment
// boundary and returns how many were removed. "/issue/AB-1" matches
// "/issue/AB-1", "/issue/AB-1/comment" and "/issue/AB-1?expand=x" but not
// "/issue/AB-10".
func (c *Cache) Invalidate(prefix string) int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if matchesPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		cacheInvalidations.Add(float64(removed))
	}
	return removed
}

// Clear removes all entries.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet
// collected.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Scope names the slice of a shared cache that belongs to one server and
// credential set. Transports prepend it to request paths so clients for
// different servers or identities never read each other's entries.
func Scope(baseURL, identity string) string {
	if identity == "" {
		identity = "anonymous"
	}
	return identity + "@" + strings.TrimSuffix(baseURL, "/")
}

// Key builds the cache key for a request: path#METHOD:digest(body).
func Key(method, path string, body []byte) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('#')
	b.WriteString(strings.ToUpper(method))
	if len(body) > 0 {
		sum := blake2b.Sum256(body)
		b.WriteByte(':')
		b.WriteString(hex.EncodeToString(sum[:]))
	}
	return b.String()
}

func matchesPrefix(key, prefix string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	if len(key) == len(prefix) || strings.HasSuffix(prefix, "/") {
		return true
	}
	switch key[len(prefix)] {
	case '/', '?', '#', '&':
		return true
	}
	return false
}
