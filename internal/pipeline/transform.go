package pipeline

import (
	"context"
	"log/slog"

	"github.com/brookmere/placepoint/internal/domain"
)

// ListingTransformer implements Transformer by parsing raw listing messages
// and enriching them with geocoding.
type ListingTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a ListingTransformer. Pass a nil geocoder to run
// with fallback coordinates only.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *ListingTransformer {
	return &ListingTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

func (t *ListingTransformer) Transform(ctx context.Context, raw domain.RawRecord) (domain.Listing, error) {
	listing, err := domain.ParseRawListing(raw)
	if err != nil {
		return domain.Listing{}, err
	}
	return domain.EnrichListing(ctx, listing, t.geocoder, t.logger), nil
}
