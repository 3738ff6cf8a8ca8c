package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/brookmere/placepoint/internal/adapter/http"
	kafkaadapter "github.com/brookmere/placepoint/internal/adapter/kafka"
	"github.com/brookmere/placepoint/internal/adapter/locationiq"
	"github.com/brookmere/placepoint/internal/config"
	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
	"github.com/brookmere/placepoint/internal/pipeline"
)

// alwaysReady satisfies the readiness check when the enrichment pipeline is
// not running; the suggestion API has no warm-up phase.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(_ context.Context) error { return nil }

// disabledGeocoder serves deployments without a provider key. Every call
// reports missing credentials, which the HTTP layer maps to a generic 500.
type disabledGeocoder struct{}

func (disabledGeocoder) ForwardGeocode(_ context.Context, _ string) domain.GeocodeResult {
	return domain.GeocodeFailure(domain.ErrUnauthorized, "no geocoding credentials configured")
}

func (disabledGeocoder) ReverseGeocode(_ context.Context, _, _ float64) domain.GeocodeResult {
	return domain.GeocodeFailure(domain.ErrUnauthorized, "no geocoding credentials configured")
}

func (disabledGeocoder) Autocomplete(_ context.Context, _ string, _ domain.AutocompleteOptions) domain.AutocompleteResult {
	return domain.AutocompleteResult{ErrorKind: domain.ErrUnauthorized, ErrorMessage: "no geocoding credentials configured"}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	domain.SetDefaultCoordinates(domain.Coordinates{Lon: cfg.DefaultLon, Lat: cfg.DefaultLat})

	// Geocoding is feature-flagged via GEOCODER_ENABLED / GEOCODER_API_KEY.
	// The interactive API always uses the raw client; only the batch pipeline
	// gets the cached decorator, where repeated addresses are common.
	var geocoder domain.Geocoder
	var pipelineGeocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		client := locationiq.NewClient(cfg.GeocoderKey, cfg.GeocoderTimeout, metrics, logger).
			WithBaseURL(cfg.GeocoderBaseURL)
		geocoder = client
		pipelineGeocoder = locationiq.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ready httpadapter.ReadinessChecker = alwaysReady{}
	var closers []func() error

	// The listing enrichment pipeline only runs when Kafka is configured.
	if cfg.KafkaEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		writer := kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(pipelineGeocoder, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p
		closers = append(closers, reader.Close, writer.Close)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	serverGeocoder := geocoder
	if serverGeocoder == nil {
		serverGeocoder = disabledGeocoder{}
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, serverGeocoder, ready, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("shutdown close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
