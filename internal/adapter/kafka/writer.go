package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/brookmere/placepoint/internal/config"
	"github.com/brookmere/placepoint/internal/domain"
)

// Writer produces enriched listings to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes multiple listings to the sink topic in
// a single WriteMessages call for efficiency.
func (w *Writer) LoadBatch(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(listings))
	for i := range listings {
		msg, err := serializeToMessage(listings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Listing into a Kafka message.
func serializeToMessage(listing domain.Listing) (kafkago.Message, error) {
	data, err := json.Marshal(listing)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize listing: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(listing.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "geo_source", Value: []byte(listing.GeoSource)},
			{Key: "processed_at", Value: []byte(listing.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
