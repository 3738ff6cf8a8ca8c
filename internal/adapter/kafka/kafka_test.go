package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brookmere/placepoint/internal/domain"
)

func TestMapMessageToRawRecord(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("lst-1"),
		Value:     []byte(`{"id":"lst-1"}`),
		Topic:     "raw-listings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("listings-service")},
		},
	}

	raw := mapMessageToRawRecord(msg)

	assert.Equal(t, []byte("lst-1"), raw.Key)
	assert.JSONEq(t, `{"id":"lst-1"}`, string(raw.Value))
	assert.Equal(t, "raw-listings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "listings-service", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 10, 0, 0, time.UTC)
	listing := domain.Listing{
		ID:          "lst-1",
		Address:     "Dam Square 1, Amsterdam",
		Geometry:    domain.NewGeoPoint(domain.Coordinates{Lon: 4.8926, Lat: 52.3731}),
		GeoSource:   domain.GeoSourceGeocoded,
		ProcessedAt: now,
	}

	msg, err := serializeToMessage(listing)
	require.NoError(t, err)

	assert.Equal(t, []byte("lst-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"geo_source":"geocoded"`)
	assert.Contains(t, string(msg.Value), `"coordinates":[4.8926,52.3731]`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "geo_source", msg.Headers[0].Key)
	assert.Equal(t, []byte("geocoded"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
