package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

// PinState is one of the finite, exclusive states of a pin session.
type PinState int

const (
	// PinIdle is the rest state before any gesture.
	PinIdle PinState = iota
	// PinPlacing holds the optimistic marker, before any network wait.
	PinPlacing
	// PinResolving has a reverse geocode in flight for the marker.
	PinResolving
	// PinCandidate holds coordinates plus an address awaiting confirmation.
	PinCandidate
	// PinConfirmed is the rest state after the user commits the candidate.
	PinConfirmed
)

func (s PinState) String() string {
	switch s {
	case PinIdle:
		return "idle"
	case PinPlacing:
		return "placing"
	case PinResolving:
		return "resolving"
	case PinCandidate:
		return "candidate"
	case PinConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// CandidateSource records how a candidate's address was obtained.
type CandidateSource int

const (
	SourceNone CandidateSource = iota
	// SourceResolved means the address came from a reverse geocode (or a
	// suggestion that already carried one).
	SourceResolved
	// SourceFallbackCoordsOnly means resolution failed and the address is
	// the synthesized "lat, lng" label. Still a valid, if degraded, location.
	SourceFallbackCoordsOnly
)

func (s CandidateSource) String() string {
	switch s {
	case SourceResolved:
		return "resolved"
	case SourceFallbackCoordsOnly:
		return "fallback_coords_only"
	}
	return "none"
}

// PinConfig tunes the reverse-geocode retry policy of a pin session.
type PinConfig struct {
	// RetryAttempts bounds reverse geocode attempts per gesture. Default 3.
	RetryAttempts int
	// RetryDelay is the linear backoff base: sleep attempt*RetryDelay
	// between attempts. Default 500ms.
	RetryDelay time.Duration
	// RequestTimeout is the hard cap per reverse geocode call. Default 10s.
	RequestTimeout time.Duration
}

func (c PinConfig) withDefaults() PinConfig {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// PinSnapshot is an immutable view of a pin session for the caller's UI.
type PinSnapshot struct {
	State       PinState
	Coordinates *domain.Coordinates
	Address     string
	Source      CandidateSource
}

// Placement is the committed outcome of a confirmed pin session.
type Placement struct {
	Coordinates domain.Coordinates
	Address     string
	Source      CandidateSource
}

// pinRest remembers the last rest state (Idle or Confirmed) so Cancel can
// restore it after discarding an in-progress gesture.
type pinRest struct {
	state   PinState
	coords  domain.Coordinates
	address string
	source  CandidateSource
}

// Pin is one "place a point on a map" interaction. The caller owns the
// instance (one per active form); there are no package-level singletons.
// All methods are safe for concurrent use with the session's own resolution
// goroutine. A response is applied only if its originating gesture is still
// the most recent one; superseded responses are dropped, never merged.
type Pin struct {
	geo     domain.Geocoder
	clock   clockwork.Clock
	cfg     PinConfig
	metrics *observability.Metrics
	logger  *slog.Logger

	// onUpdate must be set via OnUpdate before the first gesture.
	onUpdate func(PinSnapshot)

	mu         sync.Mutex
	state      PinState
	coords     domain.Coordinates
	address    string
	source     CandidateSource
	rest       pinRest
	generation int64
	cancel     context.CancelFunc
}

// NewPin creates an idle pin session.
func NewPin(geo domain.Geocoder, clock clockwork.Clock, cfg PinConfig, metrics *observability.Metrics, logger *slog.Logger) *Pin {
	return &Pin{
		geo:     geo,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		logger:  logger,
		state:   PinIdle,
	}
}

// OnUpdate registers the callback invoked after every state change.
func (p *Pin) OnUpdate(fn func(PinSnapshot)) {
	p.onUpdate = fn
}

// Place handles a click or drag gesture: the marker is placed optimistically
// at (lat, lng) with no network wait, then a reverse geocode resolves it in
// the background. Out-of-range coordinates can only originate from a
// malformed upstream map event, so they are rejected as a silent no-op with
// no state transition. Returns whether the gesture was accepted.
func (p *Pin) Place(lat, lng float64) bool {
	if !domain.ValidCoordinates(lat, lng) {
		p.logger.Warn("pin placement rejected, coordinates out of range", "lat", lat, "lng", lng)
		return false
	}

	p.mu.Lock()
	p.supersedeLocked()
	gen := p.generation

	p.state = PinPlacing
	p.coords = domain.Coordinates{Lon: lng, Lat: lat}
	p.address = ""
	p.source = SourceNone
	p.metrics.PinTransitions.WithLabelValues(PinPlacing.String()).Inc()
	placing := p.snapshotLocked()

	p.state = PinResolving
	p.metrics.PinTransitions.WithLabelValues(PinResolving.String()).Inc()
	resolving := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(placing)
	p.emit(resolving)

	go p.resolve(gen, lat, lng)
	return true
}

// PlaceKnown places a point whose address is already known, e.g. a selected
// autocomplete suggestion. No reverse geocode is issued; the session moves
// straight to a resolved candidate.
func (p *Pin) PlaceKnown(coords domain.Coordinates, address string) bool {
	if !domain.ValidCoordinates(coords.Lat, coords.Lon) {
		p.logger.Warn("pin placement rejected, coordinates out of range", "lat", coords.Lat, "lng", coords.Lon)
		return false
	}
	if address == "" {
		address = domain.FallbackLabel(coords.Lat, coords.Lon)
	}

	p.mu.Lock()
	p.supersedeLocked()
	p.state = PinCandidate
	p.coords = coords
	p.address = address
	p.source = SourceResolved
	p.metrics.PinTransitions.WithLabelValues(PinCandidate.String()).Inc()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(snap)
	return true
}

// Confirm commits the candidate. When form is non-nil the committed geometry
// and address are written into it. Returns false outside Candidate.
func (p *Pin) Confirm(form *domain.ListingForm) (Placement, bool) {
	p.mu.Lock()
	if p.state != PinCandidate {
		p.mu.Unlock()
		return Placement{}, false
	}
	p.state = PinConfirmed
	p.rest = pinRest{state: PinConfirmed, coords: p.coords, address: p.address, source: p.source}
	placement := Placement{Coordinates: p.coords, Address: p.address, Source: p.source}
	p.metrics.PinTransitions.WithLabelValues(PinConfirmed.String()).Inc()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if form != nil {
		geom := domain.NewGeoPoint(placement.Coordinates)
		form.Geometry = &geom
		form.FormattedAddress = placement.Address
	}

	p.emit(snap)
	return placement, true
}

// Cancel discards the current gesture, including one still resolving, and
// restores the previous rest state. Returns false at rest.
func (p *Pin) Cancel() bool {
	p.mu.Lock()
	switch p.state {
	case PinPlacing, PinResolving, PinCandidate:
	default:
		p.mu.Unlock()
		return false
	}

	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = p.rest.state
	p.coords = p.rest.coords
	p.address = p.rest.address
	p.source = p.rest.source
	p.metrics.PinTransitions.WithLabelValues(p.state.String()).Inc()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(snap)
	return true
}

// Snapshot returns the current state for the caller's UI.
func (p *Pin) Snapshot() PinSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// supersedeLocked starts a new gesture: advances the generation so any
// outstanding response is ignored, aborts the underlying request, and, when
// leaving a rest state, records it for Cancel.
func (p *Pin) supersedeLocked() {
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.state == PinIdle || p.state == PinConfirmed {
		p.rest = pinRest{state: p.state, coords: p.coords, address: p.address, source: p.source}
	}
}

func (p *Pin) snapshotLocked() PinSnapshot {
	snap := PinSnapshot{State: p.state, Address: p.address, Source: p.source}
	if p.state != PinIdle {
		coords := p.coords
		snap.Coordinates = &coords
	}
	return snap
}

func (p *Pin) emit(snap PinSnapshot) {
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}

// resolve runs the reverse geocode with bounded linear backoff. Exhausting
// retries is never a terminal failure: the session always reaches a
// candidate, degrading to the coordinate-only label.
func (p *Pin) resolve(gen int64, lat, lng float64) {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	var result domain.GeocodeResult
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		callCtx, cancelCall := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		result = p.geo.ReverseGeocode(callCtx, lat, lng)
		cancelCall()

		if result.Success || !result.ErrorKind.Transient() {
			break
		}
		if attempt == p.cfg.RetryAttempts {
			break
		}
		p.metrics.SessionRetries.WithLabelValues("pin").Inc()
		if !sleepCtx(ctx, p.clock, time.Duration(attempt)*p.cfg.RetryDelay) {
			return
		}
	}

	p.mu.Lock()
	if gen != p.generation {
		p.metrics.StaleDrops.WithLabelValues("pin").Inc()
		p.mu.Unlock()
		return
	}
	p.cancel = nil
	p.state = PinCandidate
	if result.Success {
		p.address = result.FormattedAddress
		p.source = SourceResolved
	} else {
		p.address = domain.FallbackLabel(lat, lng)
		p.source = SourceFallbackCoordsOnly
	}
	p.metrics.PinTransitions.WithLabelValues(PinCandidate.String()).Inc()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(snap)
}
