package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream geocoding provider.
	GeocoderKey       string
	GeocoderBaseURL   string
	GeocoderEnabled   bool
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int

	// Fallback geometry stored when geocoding fails.
	DefaultLat float64
	DefaultLon float64

	// Listing enrichment pipeline (optional).
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}

	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parsePositiveInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("GEOCODER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	defaultLat, err := parseFloat("DEFAULT_LAT", 52.1326)
	if err != nil {
		return nil, err
	}
	defaultLon, err := parseFloat("DEFAULT_LON", 5.2913)
	if err != nil {
		return nil, err
	}

	geocoderKey := os.Getenv("GEOCODER_API_KEY")
	geocoderEnabled := geocoderKey != ""
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		geocoderEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GeocoderKey:       geocoderKey,
		GeocoderBaseURL:   envOrDefault("GEOCODER_BASE_URL", "https://us1.locationiq.com/v1"),
		GeocoderEnabled:   geocoderEnabled,
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: cacheSize,

		DefaultLat: defaultLat,
		DefaultLon: defaultLon,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "raw-listings"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "geocoded-listings"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "placepoint-enricher"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.GeocoderEnabled && cfg.GeocoderKey == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_API_KEY is not set")
	}
	if cfg.DefaultLat < -90 || cfg.DefaultLat > 90 {
		return nil, errors.New("DEFAULT_LAT out of range")
	}
	if cfg.DefaultLon < -180 || cfg.DefaultLon > 180 {
		return nil, errors.New("DEFAULT_LON out of range")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
