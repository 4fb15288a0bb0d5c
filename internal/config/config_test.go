package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Minute, cfg.MapBuildTimeout)

	assert.Equal(t, "https://cds.climate.copernicus.eu/api", cfg.CDSURL)
	assert.Empty(t, cfg.CDSKey)
	assert.Equal(t, 60*time.Second, cfg.CDSTimeout)
	assert.Equal(t, 5*time.Second, cfg.CDSPollInterval)
	assert.Equal(t, "wind_api_copernicus", cfg.DataDir)
	assert.Empty(t, cfg.CountriesFile)
	assert.Empty(t, cfg.StormsFile)

	assert.Equal(t, 15, cfg.HexBaseResolution)
	assert.Equal(t, 4, cfg.HexDefaultResolution)
	assert.Equal(t, 32, cfg.HexCacheSize)
	assert.Equal(t, 1, cfg.AggregateWorkers)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "hexmap-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "hexmap-results", cfg.KafkaSinkTopic)
	assert.Equal(t, "storm-wind-hexmap", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MAP_BUILD_TIMEOUT", "90s")
	t.Setenv("CDS_URL", "http://cds.local/api")
	t.Setenv("CDS_KEY", "secret")
	t.Setenv("CDS_TIMEOUT", "2m")
	t.Setenv("CDS_POLL_INTERVAL", "1s")
	t.Setenv("DATA_DIR", "/var/lib/hexmap")
	t.Setenv("COUNTRIES_FILE", "/etc/hexmap/countries.csv")
	t.Setenv("STORMS_FILE", "/etc/hexmap/storms.csv")
	t.Setenv("HEX_BASE_RESOLUTION", "10")
	t.Setenv("HEX_DEFAULT_RESOLUTION", "6")
	t.Setenv("HEX_CACHE_SIZE", "8")
	t.Setenv("AGGREGATE_WORKERS", "4")
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
	assert.Equal(t, 90*time.Second, cfg.MapBuildTimeout)
	assert.Equal(t, "http://cds.local/api", cfg.CDSURL)
	assert.Equal(t, "secret", cfg.CDSKey)
	assert.Equal(t, 2*time.Minute, cfg.CDSTimeout)
	assert.Equal(t, time.Second, cfg.CDSPollInterval)
	assert.Equal(t, "/var/lib/hexmap", cfg.DataDir)
	assert.Equal(t, "/etc/hexmap/countries.csv", cfg.CountriesFile)
	assert.Equal(t, "/etc/hexmap/storms.csv", cfg.StormsFile)
	assert.Equal(t, 10, cfg.HexBaseResolution)
	assert.Equal(t, 6, cfg.HexDefaultResolution)
	assert.Equal(t, 8, cfg.HexCacheSize)
	assert.Equal(t, 4, cfg.AggregateWorkers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"BATCH_FLUSH_INTERVAL", "not-a-duration"},
		{"MAP_BUILD_TIMEOUT", "soon"},
		{"CDS_TIMEOUT", "bad"},
		{"CDS_TIMEOUT", "0s"},
		{"CDS_POLL_INTERVAL", "-5s"},
		{"HEX_BASE_RESOLUTION", "16"},
		{"HEX_BASE_RESOLUTION", "fine"},
		{"HEX_CACHE_SIZE", "0"},
		{"AGGREGATE_WORKERS", "65"},
		{"KAFKA_ENABLED", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoad_DefaultResolutionAboveBase(t *testing.T) {
	t.Setenv("HEX_BASE_RESOLUTION", "3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEX_DEFAULT_RESOLUTION")

	t.Setenv("HEX_DEFAULT_RESOLUTION", "2")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.HexDefaultResolution)
}
