package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "pk.test-key"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.False(t, cfg.GeocoderEnabled)
	assert.Empty(t, cfg.GeocoderKey)
	assert.Equal(t, "https://us1.locationiq.com/v1", cfg.GeocoderBaseURL)
	assert.Equal(t, 8*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, 1000, cfg.GeocoderCacheSize)

	assert.Equal(t, 52.1326, cfg.DefaultLat)
	assert.Equal(t, 5.2913, cfg.DefaultLon)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-listings", cfg.KafkaSourceTopic)
	assert.Equal(t, "geocoded-listings", cfg.KafkaSinkTopic)
	assert.Equal(t, "placepoint-enricher", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("GEOCODER_API_KEY", testAPIKey)
	t.Setenv("GEOCODER_BASE_URL", "https://eu1.locationiq.com/v1")
	t.Setenv("GEOCODER_TIMEOUT", "5s")
	t.Setenv("GEOCODER_CACHE_SIZE", "500")
	t.Setenv("DEFAULT_LAT", "48.8566")
	t.Setenv("DEFAULT_LON", "2.3522")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.GeocoderEnabled)
	assert.Equal(t, testAPIKey, cfg.GeocoderKey)
	assert.Equal(t, "https://eu1.locationiq.com/v1", cfg.GeocoderBaseURL)
	assert.Equal(t, 5*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, 500, cfg.GeocoderCacheSize)
	assert.Equal(t, 48.8566, cfg.DefaultLat)
	assert.Equal(t, 2.3522, cfg.DefaultLon)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeGeocoderTimeout(t *testing.T) {
	t.Setenv("GEOCODER_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODER_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidDefaultLat(t *testing.T) {
	t.Setenv("DEFAULT_LAT", "91")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_LAT")
}

func TestLoad_GeocoderEnabledWithoutKey(t *testing.T) {
	t.Setenv("GEOCODER_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODER_API_KEY")
}

func TestLoad_GeocoderKeyImpliesEnabled(t *testing.T) {
	t.Setenv("GEOCODER_API_KEY", testAPIKey)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GeocoderEnabled)
}

func TestLoad_GeocoderExplicitlyDisabled(t *testing.T) {
	t.Setenv("GEOCODER_API_KEY", testAPIKey)
	t.Setenv("GEOCODER_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.GeocoderEnabled)
}

func TestLoad_KafkaEnabledRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
