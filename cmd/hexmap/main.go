// Command hexmap builds one wind hex map and writes it as GeoJSON and/or a
// standalone Leaflet page. Retrieval, lookup and aggregation settings come
// from the same environment variables as the server.
//
// Usage:
//
//	go run ./cmd/hexmap -country FRA -date 2010-02-28 -variable gust -resolution 5 -out maps/
//	go run ./cmd/hexmap -country FRA -storm Xynthia -hours 0,6,12,18 -format html
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/cds"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/render"
	"github.com/couchcryptid/storm-wind-hexmap/internal/config"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/lookup"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	country    string
	date       string
	variable   string
	resolution int
	hours      string
	storm      string
	outDir     string
	format     string
}

func main() {
	var opts options
	flag.StringVar(&opts.country, "country", "", "ISO3 country code (required)")
	flag.StringVar(&opts.date, "date", "", "reference day, YYYY-MM-DD (defaults to the storm's date)")
	flag.StringVar(&opts.variable, "variable", "gust", "gust, sustained_10m or sustained_100m")
	flag.IntVar(&opts.resolution, "resolution", -1, "display resolution (defaults to HEX_DEFAULT_RESOLUTION)")
	flag.StringVar(&opts.hours, "hours", "", "comma-separated hours, empty for the whole day")
	flag.StringVar(&opts.storm, "storm", "", "reference storm name")
	flag.StringVar(&opts.outDir, "out", ".", "output directory")
	flag.StringVar(&opts.format, "format", "both", "geojson, html or both")
	flag.Parse()

	if opts.country == "" || (opts.date == "" && opts.storm == "") {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("hexmap failed", "error", err)
		os.Exit(1)
	}
}

// cliMetrics registers on a private registry; a one-shot build exposes no
// metrics endpoint.
func cliMetrics() *observability.Metrics {
	return observability.NewMetricsWithRegistry(prometheus.NewRegistry())
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := cliMetrics()

	req, err := buildRequest(opts, cfg.HexDefaultResolution)
	if err != nil {
		return err
	}

	countries, err := lookup.LoadCountries(cfg.CountriesFile)
	if err != nil {
		return err
	}
	storms, err := lookup.LoadStorms(cfg.StormsFile)
	if err != nil {
		return err
	}
	builder, err := pipeline.NewBuilder(countries, storms, cds.NewClient(cfg, metrics, logger), netcdf.NewLoader(logger),
		pipeline.BuilderConfig{
			BaseResolution: cfg.HexBaseResolution,
			Workers:        cfg.AggregateWorkers,
			CacheSize:      1,
			Timeout:        cfg.MapBuildTimeout,
		}, logger, metrics)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.MapBuildTimeout)
	defer cancel()

	m, err := builder.Build(ctx, req)
	if err != nil {
		return err
	}
	for _, w := range m.Warnings {
		logger.Warn(w)
	}

	written, err := writeOutputs(m, opts.outDir, opts.format)
	if err != nil {
		return err
	}
	for _, path := range written {
		logger.Info("map written", "path", path, "cells", len(m.Cells))
	}
	return nil
}

func buildRequest(opts options, defaultResolution int) (domain.MapRequest, error) {
	v, err := domain.ParseVariable(opts.variable)
	if err != nil {
		return domain.MapRequest{}, err
	}
	hours, err := domain.ParseHours(opts.hours)
	if err != nil {
		return domain.MapRequest{}, err
	}
	req := domain.MapRequest{
		Country:    strings.ToUpper(opts.country),
		Hours:      hours,
		Variable:   v,
		Resolution: defaultResolution,
		Storm:      opts.storm,
	}
	if opts.resolution >= 0 {
		req.Resolution = opts.resolution
	}
	if opts.date != "" {
		if req.Date, err = domain.ParseDate(opts.date); err != nil {
			return domain.MapRequest{}, err
		}
	}
	return req, nil
}

// output is one rendering of a map and its file extension.
type output struct {
	ext    string
	render func(io.Writer, domain.HexMap) error
}

var outputs = map[string][]output{
	"geojson": {{".geojson", writeGeoJSON}},
	"html":    {{".html", render.HTML}},
	"both":    {{".geojson", writeGeoJSON}, {".html", render.HTML}},
}

// writeOutputs writes the requested renderings next to each other, named
// after the dataset and resolution.
func writeOutputs(m domain.HexMap, dir, format string) ([]string, error) {
	renderers, ok := outputs[format]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (use geojson, html or both)", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := strings.NewReplacer(".nc@", "_").Replace(m.ID)

	paths := make([]string, 0, len(renderers))
	for _, r := range renderers {
		path := filepath.Join(dir, base+r.ext)
		if err := writeFile(path, m, r.render); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeGeoJSON(w io.Writer, m domain.HexMap) error {
	data, err := render.MarshalGeoJSON(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeFile(path string, m domain.HexMap, fn func(io.Writer, domain.HexMap) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f, m)
}
