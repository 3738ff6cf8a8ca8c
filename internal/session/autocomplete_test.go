package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

func suggestionsFor(addresses ...string) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(addresses))
	for i, addr := range addresses {
		out = append(out, domain.Suggestion{
			Address:     addr,
			Coordinates: &domain.Coordinates{Lon: float64(i), Lat: float64(i)},
		})
	}
	return out
}

func newTestAutocomplete(t *testing.T, geo domain.Geocoder, clk clockwork.Clock, cfg AutocompleteConfig) (*Autocomplete, chan AutocompleteSnapshot, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	ac := NewAutocomplete(geo, clk, cfg, metrics, testLogger())
	snaps := make(chan AutocompleteSnapshot, 16)
	ac.OnUpdate(func(s AutocompleteSnapshot) { snaps <- s })
	return ac, snaps, metrics
}

func waitForSettled(t *testing.T, ch chan AutocompleteSnapshot) AutocompleteSnapshot {
	t.Helper()
	for {
		s := nextSnapshot(t, ch)
		if !s.Pending {
			return s
		}
	}
}

func TestAutocompleteDebouncesKeystrokes(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, query string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			mu.Lock()
			queries = append(queries, query)
			mu.Unlock()
			return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor(query + " 1")}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	ac.Input("Da")
	ac.Input("Dam")
	ac.Input("Dam S")
	clk.Advance(300 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	require.Len(t, settled.Suggestions, 1)
	assert.Equal(t, "Dam S 1", settled.Suggestions[0].Address)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Dam S"}, queries, "only the final query should reach the provider")
}

func TestAutocompleteShortQueryClearsWithoutFetch(t *testing.T) {
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			t.Error("no fetch expected below the minimum length")
			return domain.AutocompleteResult{}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{MinLength: 3})

	ac.Input("Da")
	snap := nextSnapshot(t, snaps)
	assert.False(t, snap.Pending)
	assert.Empty(t, snap.Suggestions)
	assert.Equal(t, "Da", snap.Query)

	clk.Advance(time.Second)
}

func TestAutocompleteWhitespaceOnlyChangeIsNoOp(t *testing.T) {
	calls := 0
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			calls++
			return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor("Dam Square")}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	ac.Input("Dam")
	clk.Advance(300 * time.Millisecond)
	waitForSettled(t, snaps)

	ac.Input("  Dam  ")
	clk.Advance(time.Second)
	assert.Equal(t, 1, calls)
	assert.Empty(t, snaps, "unchanged query should not emit")
}

func TestAutocompleteStaleResponseDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	geo := &geocoderFunc{
		autoFn: func(ctx context.Context, query string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			if query == "first" {
				started <- struct{}{}
				select {
				case <-release:
				case <-ctx.Done():
				}
				return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor("First St")}
			}
			return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor("Second Ave")}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, metrics := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	ac.Input("first")
	clk.Advance(300 * time.Millisecond)
	<-started

	ac.Input("second")
	clk.Advance(300 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	require.Len(t, settled.Suggestions, 1)
	assert.Equal(t, "Second Ave", settled.Suggestions[0].Address)

	close(release)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleDrops.WithLabelValues("autocomplete")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Second Ave", ac.Snapshot().Suggestions[0].Address)
}

func TestAutocompleteRetriesRateLimit(t *testing.T) {
	calls := 0
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			calls++
			if calls == 1 {
				return domain.AutocompleteResult{ErrorKind: domain.ErrRateLimited, ErrorMessage: "slow down"}
			}
			return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor("Dam Square")}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, metrics := newTestAutocomplete(t, geo, clk, AutocompleteConfig{
		RetryBaseDelay: 250 * time.Millisecond,
	})

	ac.Input("Dam")
	clk.Advance(300 * time.Millisecond)

	clk.BlockUntil(1)
	clk.Advance(250 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	require.Len(t, settled.Suggestions, 1)
	assert.Empty(t, settled.Status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionRetries.WithLabelValues("autocomplete")))
	assert.Equal(t, "Dam", ac.Snapshot().Query)
}

func TestAutocompleteFailureKeepsQueryAndSetsStatus(t *testing.T) {
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{ErrorKind: domain.ErrNetwork, ErrorMessage: "connection refused"}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	ac.Input("Dam")
	clk.Advance(300 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	assert.Empty(t, settled.Suggestions)
	assert.Equal(t, statusFetchFailed, settled.Status)
	assert.Equal(t, "Dam", settled.Query, "typed input survives the failure")

	ac.Dismiss()
	dismissed := nextSnapshot(t, snaps)
	assert.Empty(t, dismissed.Status)
	assert.Equal(t, "Dam", dismissed.Query)
}

// populated drives a session to a settled three-suggestion list.
func populated(t *testing.T, clk *clockwork.FakeClock, extra *geocoderFunc) (*Autocomplete, chan AutocompleteSnapshot) {
	t.Helper()
	geo := &geocoderFunc{forwardFn: nil}
	if extra != nil {
		geo = extra
	}
	if geo.autoFn == nil {
		geo.autoFn = func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{Success: true, Suggestions: suggestionsFor("Alpha St", "Beta Ave", "Gamma Rd")}
		}
	}
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})
	ac.Input("query")
	clk.Advance(300 * time.Millisecond)
	waitForSettled(t, snaps)
	return ac, snaps
}

func TestAutocompleteCursorWrapsCircularly(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ac, _ := populated(t, clk, nil)

	assert.Equal(t, 0, ac.MoveCursor(1))
	assert.Equal(t, 1, ac.MoveCursor(1))
	assert.Equal(t, 2, ac.MoveCursor(1))
	assert.Equal(t, 0, ac.MoveCursor(1), "down from the last wraps to the first")
	assert.Equal(t, 2, ac.MoveCursor(-1), "up from the first wraps to the last")
}

func TestAutocompleteCursorUpFromUnselectedLandsOnLast(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ac, _ := populated(t, clk, nil)

	assert.Equal(t, 2, ac.MoveCursor(-1))
}

func TestAutocompleteCursorOnEmptyList(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ac, _, _ := newTestAutocomplete(t, &geocoderFunc{}, clk, AutocompleteConfig{})

	assert.Equal(t, -1, ac.MoveCursor(1))
	assert.Equal(t, -1, ac.MoveCursor(-1))
}

func TestAutocompleteSelectFillsOnlyEmptyFormFields(t *testing.T) {
	clk := clockwork.NewFakeClock()
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{Success: true, Suggestions: []domain.Suggestion{{
				Address:     "Unter den Linden 1, Berlin",
				Coordinates: &domain.Coordinates{Lon: 13.3889, Lat: 52.5170},
				Country:     "Germany",
				City:        "Berlin",
				State:       "Berlin",
			}}}
		},
	}
	ac, snaps := populated(t, clk, geo)
	pin, pinSnaps, _ := newTestPin(t, geo, clk, PinConfig{})

	form := &domain.ListingForm{Country: "Netherlands"}
	require.True(t, ac.Select(0, form, pin))

	assert.Equal(t, "Unter den Linden 1, Berlin", form.Address)
	assert.Equal(t, "Netherlands", form.Country, "user-entered value is never overwritten")
	assert.Equal(t, "Berlin", form.City)
	assert.Equal(t, "Berlin", form.State)

	closed := nextSnapshot(t, snaps)
	assert.Empty(t, closed.Suggestions)
	assert.Equal(t, "Unter den Linden 1, Berlin", closed.Query)

	candidate := waitForPinState(t, pinSnaps, PinCandidate)
	assert.Equal(t, SourceResolved, candidate.Source)
	require.NotNil(t, candidate.Coordinates)
	assert.InDelta(t, 13.3889, candidate.Coordinates.Lon, 1e-9)
}

func TestAutocompleteSelectWithoutCoordinatesForwardGeocodes(t *testing.T) {
	clk := clockwork.NewFakeClock()
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{Success: true, Suggestions: []domain.Suggestion{{Address: "Somewhere 7"}}}
		},
		forwardFn: func(_ context.Context, address string) domain.GeocodeResult {
			return domain.GeocodeResult{
				Success:          true,
				Coordinates:      &domain.Coordinates{Lon: 6.57, Lat: 53.22},
				FormattedAddress: "Somewhere 7, Groningen",
			}
		},
	}
	ac, _ := populated(t, clk, geo)
	pin, pinSnaps, _ := newTestPin(t, geo, clk, PinConfig{})

	require.True(t, ac.Select(0, nil, pin))

	candidate := waitForPinState(t, pinSnaps, PinCandidate)
	assert.Equal(t, "Somewhere 7, Groningen", candidate.Address)
	require.NotNil(t, candidate.Coordinates)
	assert.InDelta(t, 53.22, candidate.Coordinates.Lat, 1e-9)
}

func TestAutocompleteSelectOutOfRangeIndex(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ac, _ := populated(t, clk, nil)

	assert.False(t, ac.Select(3, nil, nil))
	assert.False(t, ac.Select(-1, nil, nil))
	assert.Len(t, ac.Snapshot().Suggestions, 3, "failed select leaves the list open")
}

func TestAutocompleteProviderMinLengthYieldsEmptyList(t *testing.T) {
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{ErrorKind: domain.ErrInvalidInput, ErrorMessage: "query too short"}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	// Two runes pass the session threshold but not the provider's.
	ac.Input("Da")
	clk.Advance(300 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	assert.Empty(t, settled.Suggestions)
	assert.Empty(t, settled.Status, "a too-short query is not an error")
}

func TestAutocompleteEmptyResultIsNotAnError(t *testing.T) {
	geo := &geocoderFunc{
		autoFn: func(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
			return domain.AutocompleteResult{Success: true}
		},
	}
	clk := clockwork.NewFakeClock()
	ac, snaps, _ := newTestAutocomplete(t, geo, clk, AutocompleteConfig{})

	ac.Input("Nowhere")
	clk.Advance(300 * time.Millisecond)

	settled := waitForSettled(t, snaps)
	assert.Empty(t, settled.Suggestions)
	assert.Empty(t, settled.Status)
}
