package locationiq

import (
	"context"
	"testing"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/stretchr/testify/assert"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	forwardCalls      int
	reverseCalls      int
	autocompleteCalls int
	result            domain.GeocodeResult
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _ string) domain.GeocodeResult {
	m.forwardCalls++
	return m.result
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) domain.GeocodeResult {
	m.reverseCalls++
	return m.result
}

func (m *countingGeocoder) Autocomplete(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
	m.autocompleteCalls++
	return domain.AutocompleteResult{Success: true}
}

func successResult(address string) domain.GeocodeResult {
	return domain.GeocodeResult{
		Success:          true,
		Coordinates:      &domain.Coordinates{Lon: 4.9, Lat: 52.37},
		FormattedAddress: address,
	}
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_ForwardCacheHit(t *testing.T) {
	inner := &countingGeocoder{result: successResult("Damrak 1, Amsterdam")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	r1 := cached.ForwardGeocode(context.Background(), "Damrak 1")
	assert.True(t, r1.Success)

	r2 := cached.ForwardGeocode(context.Background(), "Damrak 1")
	assert.Equal(t, "Damrak 1, Amsterdam", r2.FormattedAddress)

	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{result: successResult("Damrak 1, Amsterdam")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	cached.ReverseGeocode(context.Background(), 52.37, 4.9)
	cached.ReverseGeocode(context.Background(), 52.37, 4.9)

	assert.Equal(t, 1, inner.reverseCalls, "should only call inner once")
}

func TestCachedGeocoder_FailuresNotCached(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodeFailure(domain.ErrNoResults, "no matches")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	cached.ForwardGeocode(context.Background(), "Nowhere")
	cached.ForwardGeocode(context.Background(), "Nowhere")

	assert.Equal(t, 2, inner.forwardCalls, "failed lookups must be retried")
}

func TestCachedGeocoder_AutocompleteBypassesCache(t *testing.T) {
	inner := &countingGeocoder{result: successResult("x")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	cached.Autocomplete(context.Background(), "dam", domain.AutocompleteOptions{})
	cached.Autocomplete(context.Background(), "dam", domain.AutocompleteOptions{})

	assert.Equal(t, 2, inner.autocompleteCalls)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: successResult("x")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	cached.ForwardGeocode(context.Background(), "Damrak 1")
	cached.ForwardGeocode(context.Background(), "Rokin 1")

	assert.Equal(t, 2, inner.forwardCalls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", domain.GeocodeResult{FormattedAddress: "A"})
	c.put("b", domain.GeocodeResult{FormattedAddress: "B"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result.FormattedAddress)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodeResult{FormattedAddress: "A"})
	c.put("b", domain.GeocodeResult{FormattedAddress: "B"})
	c.put("c", domain.GeocodeResult{FormattedAddress: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result.FormattedAddress)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodeResult{FormattedAddress: "A"})
	c.put("b", domain.GeocodeResult{FormattedAddress: "B"})

	c.get("a")

	// Inserting "c" should evict "b" (LRU), not "a".
	c.put("c", domain.GeocodeResult{FormattedAddress: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.GeocodeResult{FormattedAddress: "A1"})
	c.put("a", domain.GeocodeResult{FormattedAddress: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.FormattedAddress)
}
