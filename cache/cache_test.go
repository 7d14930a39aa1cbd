package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte(`{"a":1}`), time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(v))
}

func TestCache_LazyExpiry(t *testing.T) {
	c, clock := newTestCache()

	c.SetTier("issue", []byte(`1`), TierShort)
	clock.Advance(DefaultShortTTL - time.Second)
	_, ok := c.Get("issue")
	assert.True(t, ok, "entry should survive until its TTL")

	clock.Advance(time.Second)
	_, ok = c.Get("issue")
	assert.False(t, ok, "entry should expire at its TTL")
	assert.Equal(t, 0, c.Len(), "expired entry should be collected on Get")
}

func TestCache_NonPositiveTTLIsNoop(t *testing.T) {
	c, _ := newTestCache()
	c.Set("k", []byte("v"), 0)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache()
	keys := []string{
		Key("GET", "/rest/api/3/issue/AB-1", nil),
		Key("GET", "/rest/api/3/issue/AB-1?expand=renderedFields", nil),
		Key("GET", "/rest/api/3/issue/AB-1/comment", nil),
		Key("GET", "/rest/api/3/issue/AB-10", nil),
		Key("GET", "/rest/api/3/search/jql?jql=x", nil),
		Key("GET", "/rest/api/3/search?jql=y", nil),
		Key("GET", "/rest/api/3/project", nil),
	}
	for _, k := range keys {
		c.Set(k, []byte("{}"), time.Hour)
	}

	assert.Equal(t, 3, c.Invalidate("/rest/api/3/issue/AB-1"))
	_, ok := c.Get(Key("GET", "/rest/api/3/issue/AB-10", nil))
	assert.True(t, ok, "sibling key with longer id must survive")

	assert.Equal(t, 2, c.Invalidate("/rest/api/3/search"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Cache
	c.Set("k", []byte("v"), time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Invalidate("k"))
	assert.Equal(t, 0, c.Len())
	assert.Zero(t, c.TTL(TierLong))
	c.Clear()
}

func TestKey(t *testing.T) {
	a := Key("get", "/p", []byte(`{"x":1}`))
	b := Key("GET", "/p", []byte(`{"x":1}`))
	c := Key("GET", "/p", []byte(`{"x":2}`))

	assert.Equal(t, a, b, "method is case-insensitive")
	assert.NotEqual(t, b, c, "body participates in the key")
	assert.Equal(t, "/p#GET", Key("GET", "/p", nil))
}

func TestTTLs_Duration(t *testing.T) {
	ttls := TTLs{Long: time.Hour}
	assert.Equal(t, DefaultShortTTL, ttls.Duration(TierShort))
	assert.Equal(t, DefaultMediumTTL, ttls.Duration(TierMedium))
	assert.Equal(t, time.Hour, ttls.Duration(TierLong))
	assert.Equal(t, DefaultVeryLongTTL, ttls.Duration(TierVeryLong))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("/issue/AB-%d", i%4)
			for range 100 {
				c.Set(key, []byte("v"), time.Minute)
				c.Get(key)
				c.Invalidate("/issue/AB-0")
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
