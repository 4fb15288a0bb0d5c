package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/cds"
	httpadapter "github.com/couchcryptid/storm-wind-hexmap/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-wind-hexmap/internal/adapter/kafka"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-wind-hexmap/internal/config"
	"github.com/couchcryptid/storm-wind-hexmap/internal/lookup"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	countries, err := lookup.LoadCountries(cfg.CountriesFile)
	if err != nil {
		logger.Error("load countries", "error", err)
		os.Exit(1)
	}
	storms, err := lookup.LoadStorms(cfg.StormsFile)
	if err != nil {
		logger.Error("load storms", "error", err)
		os.Exit(1)
	}

	if cfg.CDSKey == "" {
		logger.Warn("CDS_KEY is not set; only datasets already in DATA_DIR can be mapped", "data_dir", cfg.DataDir)
	}
	retriever := cds.NewClient(cfg, metrics, logger)
	loader := netcdf.NewLoader(logger)

	builder, err := pipeline.NewBuilder(countries, storms, retriever, loader, pipeline.BuilderConfig{
		BaseResolution: cfg.HexBaseResolution,
		Workers:        cfg.AggregateWorkers,
		CacheSize:      cfg.HexCacheSize,
		Timeout:        cfg.MapBuildTimeout,
	}, logger, metrics)
	if err != nil {
		logger.Error("create map builder", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Kafka request loop. When enabled, readiness follows the loop.
	var (
		ready  sharedobs.ReadinessChecker = builder
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(builder, cfg.HexDefaultResolution, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize, cfg.MapBuildTimeout)
		ready = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("kafka request loop enabled", "source", cfg.KafkaSourceTopic, "sink", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka request loop disabled")
	}

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:              cfg.HTTPAddr,
		Maps:              builder,
		Countries:         countries,
		Storms:            storms,
		Ready:             ready,
		Metrics:           metrics,
		DefaultResolution: cfg.HexDefaultResolution,
		BuildTimeout:      cfg.MapBuildTimeout,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
