// Package domain models address geocoding for listing records.
//
// # Provider contract
//
// One upstream provider is wrapped behind the [Geocoder] interface: three
// REST endpoints (search, reverse, autocomplete), each taking a query or
// coordinate pair plus an API key and returning a results array in which the
// first element is authoritative. The client adapter normalizes every
// response into a [GeocodeResult] or [AutocompleteResult] value and never
// returns a Go error; failures are classified into [ErrorKind] so each
// caller can apply a retry policy suited to its interactivity requirements.
//
// # Coordinate conventions
//
// Coordinates use GeoJSON order: longitude first. Validation is uniform:
// lat in [-90, 90], lng in [-180, 180], both finite. The record storage
// layer accepts geometry as {"type":"Point","coordinates":[lng,lat]},
// produced by [GeoPoint].
//
// # Degradation policy
//
// Geocoding is never allowed to block record creation. A forward geocode
// that fails for any reason stores [DefaultCoordinates] plus a warning
// ([EnrichListing]); a reverse geocode with no results synthesizes a
// "lat, lng" display label rounded to 4 decimals ([FallbackLabel]). The
// asymmetry is deliberate: a coordinate pair clicked on a map is known good
// and only lacks a name, while a free-text address that matched nothing may
// be wrong, so the latter is surfaced as a user-visible warning.
//
// # No-results handling
//
// ErrNoResults is a valid empty answer, not an error: it is rendered as
// "no matches" or the fallback coordinates and never retried. Forward
// geocode echoes the original input in FormattedAddress so the UI always
// has something to display.
package domain
