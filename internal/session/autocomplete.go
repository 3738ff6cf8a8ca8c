package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

// AutocompleteConfig tunes the debounce and retry policy of an autocomplete
// session.
type AutocompleteConfig struct {
	// MinLength is the minimum trimmed query length to fetch for. Default 2.
	MinLength int
	// Debounce is the quiet period after the last keystroke before a fetch
	// is issued. Default 300ms.
	Debounce time.Duration
	// RequestTimeout caps each provider call. Default 8s.
	RequestTimeout time.Duration
	// RetryAttempts bounds extra attempts after a rate-limited response.
	// Default 2.
	RetryAttempts int
	// RetryBaseDelay is the linear backoff base between rate-limit retries.
	// Default 250ms.
	RetryBaseDelay time.Duration
	// Limit caps the suggestion count per fetch. Default 5.
	Limit int
	// CountryBias optionally restricts suggestions to ISO country codes.
	CountryBias string
}

func (c AutocompleteConfig) withDefaults() AutocompleteConfig {
	if c.MinLength <= 0 {
		c.MinLength = 2
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 8 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 2
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 250 * time.Millisecond
	}
	if c.Limit <= 0 {
		c.Limit = 5
	}
	return c
}

// AutocompleteSnapshot is an immutable view of an autocomplete session.
// Status carries a dismissible inline message; it never blocks input.
type AutocompleteSnapshot struct {
	Query       string
	Suggestions []domain.Suggestion
	Cursor      int
	Pending     bool
	Status      string
}

const (
	statusFetchFailed   = "unable to load suggestions"
	statusResolveFailed = "could not locate selected address"
)

// Autocomplete is one address-typeahead interaction. Keystrokes are
// debounced on the injected clock and each schedules a fetch under a new
// generation; a response is applied only if its generation is still current,
// so out-of-order responses can never surface suggestions for an old query.
type Autocomplete struct {
	geo     domain.Geocoder
	clock   clockwork.Clock
	cfg     AutocompleteConfig
	metrics *observability.Metrics
	logger  *slog.Logger

	// onUpdate must be set via OnUpdate before the first keystroke.
	onUpdate func(AutocompleteSnapshot)

	mu          sync.Mutex
	query       string
	suggestions []domain.Suggestion
	cursor      int
	pending     bool
	status      string
	generation  int64
	timer       clockwork.Timer
	cancel      context.CancelFunc
}

// NewAutocomplete creates an empty autocomplete session.
func NewAutocomplete(geo domain.Geocoder, clock clockwork.Clock, cfg AutocompleteConfig, metrics *observability.Metrics, logger *slog.Logger) *Autocomplete {
	return &Autocomplete{
		geo:     geo,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		logger:  logger,
		cursor:  -1,
	}
}

// OnUpdate registers the callback invoked after every visible change.
func (a *Autocomplete) OnUpdate(fn func(AutocompleteSnapshot)) {
	a.onUpdate = fn
}

// Input handles one keystroke's worth of text. Leading and trailing
// whitespace is ignored; input that leaves the trimmed query unchanged is a
// no-op. A changed query supersedes any scheduled or in-flight fetch. Below
// MinLength the suggestion list clears without a fetch.
func (a *Autocomplete) Input(text string) {
	trimmed := strings.TrimSpace(text)

	a.mu.Lock()
	if trimmed == a.query {
		a.mu.Unlock()
		return
	}
	a.query = trimmed
	a.supersedeLocked()
	a.cursor = -1
	a.status = ""

	if utf8.RuneCountInString(trimmed) < a.cfg.MinLength {
		a.suggestions = nil
		a.pending = false
		snap := a.snapshotLocked()
		a.mu.Unlock()
		a.emit(snap)
		return
	}

	a.pending = true
	gen := a.generation
	a.timer = a.clock.AfterFunc(a.cfg.Debounce, func() {
		a.fire(gen, trimmed)
	})
	a.metrics.DebouncedRequests.Inc()
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)
}

// MoveCursor moves the highlight by delta, wrapping circularly. From the
// unselected position a downward move lands on the first suggestion and an
// upward move on the last. Returns the new cursor, -1 when the list is empty.
func (a *Autocomplete) MoveCursor(delta int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.suggestions)
	if n == 0 {
		return -1
	}
	if a.cursor < 0 {
		if delta >= 0 {
			a.cursor = 0
		} else {
			a.cursor = n - 1
		}
		return a.cursor
	}
	a.cursor = ((a.cursor+delta)%n + n) % n
	return a.cursor
}

// Select commits the suggestion at index: the list closes, the query becomes
// the chosen address, and dependent form fields are filled only where still
// empty. When pin is non-nil the selection also places a resolved pin; a
// suggestion without coordinates is forward geocoded in the background first.
// Returns false when index does not name a visible suggestion.
func (a *Autocomplete) Select(index int, form *domain.ListingForm, pin *Pin) bool {
	a.mu.Lock()
	if index < 0 || index >= len(a.suggestions) {
		a.mu.Unlock()
		return false
	}
	chosen := a.suggestions[index]

	a.supersedeLocked()
	a.query = chosen.Address
	a.suggestions = nil
	a.cursor = -1
	a.pending = false
	a.status = ""
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if form != nil {
		form.Address = chosen.Address
		if form.Country == "" {
			form.Country = chosen.Country
		}
		if form.City == "" {
			form.City = chosen.City
		}
		if form.State == "" {
			form.State = chosen.State
		}
	}
	a.emit(snap)

	if pin != nil {
		if chosen.Coordinates != nil {
			pin.PlaceKnown(*chosen.Coordinates, chosen.Address)
		} else {
			go a.resolveSelection(chosen.Address, pin)
		}
	}
	return true
}

// Dismiss closes the suggestion list and clears any status message without
// touching the typed query. A pending fetch is abandoned.
func (a *Autocomplete) Dismiss() {
	a.mu.Lock()
	a.supersedeLocked()
	a.suggestions = nil
	a.cursor = -1
	a.pending = false
	a.status = ""
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)
}

// Close tears the session down entirely, abandoning any pending work.
func (a *Autocomplete) Close() {
	a.mu.Lock()
	a.supersedeLocked()
	a.query = ""
	a.suggestions = nil
	a.cursor = -1
	a.pending = false
	a.status = ""
	a.mu.Unlock()
}

// Snapshot returns the current state for the caller's UI.
func (a *Autocomplete) Snapshot() AutocompleteSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// supersedeLocked advances the generation and aborts any scheduled debounce
// or in-flight fetch belonging to the previous one.
func (a *Autocomplete) supersedeLocked() {
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Autocomplete) snapshotLocked() AutocompleteSnapshot {
	snap := AutocompleteSnapshot{
		Query:   a.query,
		Cursor:  a.cursor,
		Pending: a.pending,
		Status:  a.status,
	}
	if len(a.suggestions) > 0 {
		snap.Suggestions = make([]domain.Suggestion, len(a.suggestions))
		copy(snap.Suggestions, a.suggestions)
	}
	return snap
}

func (a *Autocomplete) emit(snap AutocompleteSnapshot) {
	if a.onUpdate != nil {
		a.onUpdate(snap)
	}
}

// fire runs once the debounce elapses. Rate-limited responses are retried
// with linear backoff; any other failure surfaces immediately as a
// dismissible status.
func (a *Autocomplete) fire(gen int64, query string) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	opts := domain.AutocompleteOptions{Limit: a.cfg.Limit, CountryBias: a.cfg.CountryBias}
	var result domain.AutocompleteResult
	for attempt := 0; ; attempt++ {
		callCtx, cancelCall := context.WithTimeout(ctx, a.cfg.RequestTimeout)
		result = a.geo.Autocomplete(callCtx, query, opts)
		cancelCall()

		if result.ErrorKind != domain.ErrRateLimited || attempt >= a.cfg.RetryAttempts {
			break
		}
		a.metrics.SessionRetries.WithLabelValues("autocomplete").Inc()
		if !sleepCtx(ctx, a.clock, time.Duration(attempt+1)*a.cfg.RetryBaseDelay) {
			return
		}
	}

	a.apply(gen, result)
}

func (a *Autocomplete) apply(gen int64, result domain.AutocompleteResult) {
	a.mu.Lock()
	if gen != a.generation {
		a.metrics.StaleDrops.WithLabelValues("autocomplete").Inc()
		a.mu.Unlock()
		return
	}
	a.cancel = nil
	a.pending = false
	a.cursor = -1
	switch {
	case result.Success:
		a.suggestions = result.Suggestions
		a.status = ""
	case result.ErrorKind == domain.ErrInvalidInput:
		// Below the provider's own minimum length. An empty list, not an error.
		a.suggestions = nil
		a.status = ""
	default:
		a.suggestions = nil
		a.status = statusFetchFailed
		a.logger.Warn("suggestion fetch failed", "kind", string(result.ErrorKind), "detail", result.ErrorMessage)
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)
}

// resolveSelection forward geocodes a coordinate-less suggestion so the
// downstream pin session still receives a concrete point.
func (a *Autocomplete) resolveSelection(address string, pin *Pin) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	res := a.geo.ForwardGeocode(ctx, address)
	if res.Success && res.Coordinates != nil {
		label := res.FormattedAddress
		if label == "" {
			label = address
		}
		pin.PlaceKnown(*res.Coordinates, label)
		return
	}

	a.mu.Lock()
	a.status = statusResolveFailed
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.logger.Warn("selected suggestion could not be located", "kind", string(res.ErrorKind))
	a.emit(snap)
}
