package locationiq

import (
	"context"
	"fmt"
	"sync"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache for forward
// and reverse lookups. Autocomplete passes through uncached: suggestion
// lists are per-keystroke and per-session, so caching them buys nothing.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, address string) domain.GeocodeResult {
	key := "fwd:" + address
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("forward", "hit").Inc()
		return result
	}
	c.metrics.GeocodeCache.WithLabelValues("forward", "miss").Inc()

	result := c.inner.ForwardGeocode(ctx, address)
	// Only cache successes so transient failures and empty answers can be retried.
	if result.Success {
		c.cache.put(key, result)
	}
	return result
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) domain.GeocodeResult {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lng)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return result
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	result := c.inner.ReverseGeocode(ctx, lat, lng)
	if result.Success {
		c.cache.put(key, result)
	}
	return result
}

func (c *CachedGeocoder) Autocomplete(ctx context.Context, query string, opts domain.AutocompleteOptions) domain.AutocompleteResult {
	return c.inner.Autocomplete(ctx, query, opts)
}

// lruCache is a simple thread-safe LRU cache for GeocodeResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.GeocodeResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.GeocodeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.GeocodeResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.GeocodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
