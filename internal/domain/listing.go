package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RawRecord is an unprocessed message from the source topic.
type RawRecord struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawListing is the flat JSON shape the listings service publishes when a
// record is created or its address changes.
type RawListing struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Country string `json:"country"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// Geo source values recorded on an enriched listing.
const (
	GeoSourceGeocoded = "geocoded"
	GeoSourceFallback = "fallback"
)

// Listing is the record after geocoding enrichment. Geometry is always set:
// either the geocoded point or DefaultCoordinates with a warning.
type Listing struct {
	ID               string    `json:"id"`
	Address          string    `json:"address"`
	Country          string    `json:"country,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Geometry         GeoPoint  `json:"geometry"`
	FormattedAddress string    `json:"formatted_address,omitempty"`
	GeoSource        string    `json:"geo_source"`
	GeoWarning       string    `json:"geo_warning,omitempty"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// ListingForm holds the address-related fields of the host form that
// autocomplete selection and pin confirmation write into.
type ListingForm struct {
	Address          string
	Country          string
	City             string
	State            string
	FormattedAddress string
	Geometry         *GeoPoint
}

// ParseRawListing decodes a raw source message into a Listing awaiting
// enrichment.
func ParseRawListing(raw RawRecord) (Listing, error) {
	var rl RawListing
	if err := json.Unmarshal(raw.Value, &rl); err != nil {
		return Listing{}, fmt.Errorf("parse raw listing: %w", err)
	}
	if rl.ID == "" {
		return Listing{}, errors.New("raw listing missing id")
	}
	return Listing{
		ID:      rl.ID,
		Address: strings.TrimSpace(rl.Address),
		Country: rl.Country,
		City:    rl.City,
		State:   rl.State,
	}, nil
}

// EnrichListing forward-geocodes the listing address and applies the
// "always end with valid geometry" policy: on success it stores the returned
// coordinates, the provider's formatted address when materially different,
// and the country when the record's own is empty; on any failure it stores
// DefaultCoordinates and records a warning instead of failing the listing.
func EnrichListing(ctx context.Context, listing Listing, geocoder Geocoder, logger *slog.Logger) Listing {
	listing.ProcessedAt = clock.Now().UTC()

	if geocoder == nil {
		listing.Geometry = NewGeoPoint(DefaultCoordinates)
		listing.GeoSource = GeoSourceFallback
		listing.GeoWarning = "geocoding disabled"
		return listing
	}

	result := geocoder.ForwardGeocode(ctx, listing.Address)
	if result.Success {
		listing.Geometry = NewGeoPoint(*result.Coordinates)
		if result.FormattedAddress != "" && !strings.EqualFold(result.FormattedAddress, listing.Address) {
			listing.FormattedAddress = result.FormattedAddress
		}
		if listing.Country == "" {
			listing.Country = result.Country
		}
		if listing.City == "" {
			listing.City = result.City
		}
		listing.GeoSource = GeoSourceGeocoded
		return listing
	}

	logger.Warn("forward geocoding failed, storing default coordinates",
		"listing_id", listing.ID,
		"address", listing.Address,
		"kind", string(result.ErrorKind),
		"error", result.ErrorMessage,
	)
	listing.Geometry = NewGeoPoint(DefaultCoordinates)
	listing.GeoSource = GeoSourceFallback
	listing.GeoWarning = fmt.Sprintf("address could not be geocoded: %s", result.ErrorKind)
	return listing
}
