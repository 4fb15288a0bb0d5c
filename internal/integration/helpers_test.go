//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/cds"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-wind-hexmap/internal/config"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/lookup"
	"github.com/couchcryptid/storm-wind-hexmap/internal/mockdata"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

// xynthiaDay is the reference date of the seeded datasets.
var xynthiaDay = time.Date(2010, time.February, 28, 0, 0, 0, 0, time.UTC)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tcKafka.Run(ctx, "confluentinc/confluent-local:7.6.0")
	require.NoError(t, err, "start kafka")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(kc); err != nil {
			t.Logf("terminate kafka: %v", err)
		}
	})

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err, "get brokers")
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial kafka")
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

// seedDataDir writes synthetic whole-day French datasets for every variable
// into a fresh data directory, named as the CDS client names its downloads.
func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	countries, err := lookup.LoadCountries("")
	require.NoError(t, err)
	fra, err := countries.Country("FRA")
	require.NoError(t, err)

	for _, v := range domain.Variables {
		req := domain.MapRequest{Country: "FRA", Date: xynthiaDay, Variable: v}
		ds, err := mockdata.Storm(req, fra.BBox, mockdata.DefaultStep)
		require.NoError(t, err)
		require.NoError(t, netcdf.Write(filepath.Join(dir, req.DatasetName()), ds, netcdf.WriteOptions{Packed: v == domain.Gust}))
	}
	return dir
}

// newBuilder wires the real lookup, CDS client and NetCDF loader over a
// seeded data directory. No CDS key is configured, so only seeded datasets
// can be mapped.
func newBuilder(t *testing.T, dataDir string) *pipeline.Builder {
	t.Helper()
	cfg := &config.Config{
		CDSURL:          "http://127.0.0.1:1",
		CDSTimeout:      time.Second,
		CDSPollInterval: time.Second,
		DataDir:         dataDir,
	}
	metrics := observability.NewMetricsForTesting()

	countries, err := lookup.LoadCountries("")
	require.NoError(t, err)
	storms, err := lookup.LoadStorms("")
	require.NoError(t, err)

	b, err := pipeline.NewBuilder(countries, storms, cds.NewClient(cfg, metrics, discardLogger()), netcdf.NewLoader(discardLogger()),
		pipeline.BuilderConfig{BaseResolution: 9, Workers: 4, CacheSize: 8}, discardLogger(), metrics)
	require.NoError(t, err)
	return b
}
