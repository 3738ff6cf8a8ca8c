package domain

import "context"

// ErrorKind classifies geocoding failures so callers can pick a retry policy
// without inspecting provider-specific errors.
type ErrorKind string

const (
	// ErrNone is the zero value: the operation succeeded.
	ErrNone ErrorKind = ""
	// ErrInvalidInput marks a caller bug (malformed address, coordinates
	// out of range, query too short). Never retried.
	ErrInvalidInput ErrorKind = "invalid_input"
	// ErrUnauthorized marks rejected credentials. Never retried; logged loudly.
	ErrUnauthorized ErrorKind = "unauthorized"
	// ErrRateLimited marks an upstream 429. Retryable with backoff.
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrTimeout marks a request that exceeded its hard cap.
	ErrTimeout ErrorKind = "timeout"
	// ErrNoResults is a valid empty answer, not a failure to be retried.
	ErrNoResults ErrorKind = "no_results"
	// ErrNetwork marks any other transport failure.
	ErrNetwork ErrorKind = "network_error"
)

// Transient reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrRateLimited, ErrTimeout, ErrNetwork:
		return true
	}
	return false
}

// GeocodeResult is the outcome of a forward or reverse geocode. It is always
// a plain value: the client never returns a Go error, so every failure mode
// is visible in ErrorKind and retry decisions stay with the caller.
//
// Invariant: Success is true iff Coordinates is non-nil (forward) or
// FormattedAddress is non-empty (reverse), and iff ErrorKind is ErrNone.
type GeocodeResult struct {
	Success          bool
	Coordinates      *Coordinates
	FormattedAddress string
	Country          string
	City             string
	State            string
	ErrorKind        ErrorKind
	ErrorMessage     string
}

// GeocodeFailure builds a failed result with the given classification.
func GeocodeFailure(kind ErrorKind, message string) GeocodeResult {
	return GeocodeResult{ErrorKind: kind, ErrorMessage: message}
}

// Suggestion is one autocomplete candidate. Immutable once produced; the
// provider's relevance order is preserved and never re-sorted.
type Suggestion struct {
	Address     string
	Coordinates *Coordinates
	Country     string
	City        string
	State       string
}

// AutocompleteResult is the outcome of a prefix-autocomplete call.
type AutocompleteResult struct {
	Success      bool
	Suggestions  []Suggestion
	ErrorKind    ErrorKind
	ErrorMessage string
}

// AutocompleteOptions tune a single autocomplete call.
type AutocompleteOptions struct {
	// Limit caps the number of suggestions. Zero means the provider default (5).
	Limit int
	// CountryBias is an optional ISO 3166-1 alpha-2 code restricting results.
	CountryBias string
}

// Geocoder is the uniform contract over the upstream provider's three
// endpoints. Implementations classify failures into result values instead of
// returning errors; retry and backoff policy belongs to the caller.
type Geocoder interface {
	// ForwardGeocode resolves a free-text address to coordinates.
	ForwardGeocode(ctx context.Context, address string) GeocodeResult

	// ReverseGeocode resolves coordinates to a human-readable address.
	ReverseGeocode(ctx context.Context, lat, lng float64) GeocodeResult

	// Autocomplete returns ranked partial-address matches for an
	// in-progress query of at least 3 runes.
	Autocomplete(ctx context.Context, query string, opts AutocompleteOptions) AutocompleteResult
}
