package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MapBuildTimeout time.Duration

	// Copernicus Climate Data Store.
	CDSURL          string
	CDSKey          string
	CDSTimeout      time.Duration
	CDSPollInterval time.Duration
	DataDir         string

	// Lookup tables; empty selects the embedded defaults.
	CountriesFile string
	StormsFile    string

	// Hexagon aggregation.
	HexBaseResolution    int
	HexDefaultResolution int
	HexCacheSize         int
	AggregateWorkers     int

	// Kafka request loop.
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
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	buildTimeout, err := parsePositiveDuration("MAP_BUILD_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}

	cdsTimeout, err := parsePositiveDuration("CDS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("CDS_POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	baseRes, err := parseIntInRange("HEX_BASE_RESOLUTION", 15, 0, 15)
	if err != nil {
		return nil, err
	}
	defaultRes, err := parseIntInRange("HEX_DEFAULT_RESOLUTION", 4, 0, baseRes)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("HEX_CACHE_SIZE", 32, 1, 10000)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntInRange("AGGREGATE_WORKERS", 1, 1, 64)
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		MapBuildTimeout: buildTimeout,

		CDSURL:          sharedcfg.EnvOrDefault("CDS_URL", "https://cds.climate.copernicus.eu/api"),
		CDSKey:          os.Getenv("CDS_KEY"),
		CDSTimeout:      cdsTimeout,
		CDSPollInterval: pollInterval,
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "wind_api_copernicus"),

		CountriesFile: os.Getenv("COUNTRIES_FILE"),
		StormsFile:    os.Getenv("STORMS_FILE"),

		HexBaseResolution:    baseRes,
		HexDefaultResolution: defaultRes,
		HexCacheSize:         cacheSize,
		AggregateWorkers:     workers,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "hexmap-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hexmap-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-wind-hexmap"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.CDSURL == "" {
		return nil, errors.New("CDS_URL is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		if fallback < lo || fallback > hi {
			return 0, fmt.Errorf("invalid %s: default %d outside [%d, %d]", key, fallback, lo, hi)
		}
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
