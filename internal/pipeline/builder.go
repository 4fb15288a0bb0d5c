package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CountryLookup resolves an ISO3 code to a country and its bounding box.
type CountryLookup interface {
	Country(iso3 string) (domain.Country, error)
}

// StormLookup resolves a reference storm by name.
type StormLookup interface {
	Storm(name string) (domain.Storm, error)
}

// Retriever makes a dataset extract available locally and returns its path.
type Retriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (string, error)
}

// DatasetLoader reads the named fields of a local dataset file.
type DatasetLoader interface {
	Load(ctx context.Context, path string, fieldNames []string) (*domain.Dataset, error)
}

// BuilderConfig holds the aggregation settings of a Builder.
type BuilderConfig struct {
	BaseResolution int
	Workers        int
	CacheSize      int
	// Timeout bounds a shared aggregation, which outlives any single caller.
	// Zero means no limit beyond the callers' own deadlines.
	Timeout time.Duration
}

// Builder turns a MapRequest into a classified HexMap: it resolves the
// country, retrieves and loads the dataset, reduces it to a magnitude grid,
// aggregates it onto hexagons and classifies every cell. Aggregations are
// cached per dataset and resolution, and concurrent builds of the same key
// share one computation.
type Builder struct {
	countries CountryLookup
	storms    StormLookup
	retriever Retriever
	loader    DatasetLoader
	cache     *AggregationCache
	inflight  singleflight.Group
	baseRes   int
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewBuilder wires a Builder. storms may be nil, in which case requests
// naming a storm fail with ErrStormNotFound.
func NewBuilder(countries CountryLookup, storms StormLookup, retriever Retriever, loader DatasetLoader, cfg BuilderConfig, logger *slog.Logger, metrics *observability.Metrics) (*Builder, error) {
	if err := domain.ValidateResolutions(cfg.BaseResolution, 0); err != nil {
		return nil, err
	}
	cache, err := NewAggregationCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("aggregation cache: %w", err)
	}
	return &Builder{
		countries: countries,
		storms:    storms,
		retriever: retriever,
		loader:    loader,
		cache:     cache,
		baseRes:   cfg.BaseResolution,
		workers:   max(cfg.Workers, 1),
		timeout:   cfg.Timeout,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// BaseResolution is the resolution grid points are indexed at.
func (b *Builder) BaseResolution() int {
	return b.baseRes
}

// CheckReadiness reports whether the builder can serve requests.
func (b *Builder) CheckReadiness(_ context.Context) error {
	if b.countries == nil || b.retriever == nil || b.loader == nil {
		return errors.New("map builder is not fully configured")
	}
	return nil
}

// Build produces the hex map for req.
func (b *Builder) Build(ctx context.Context, req domain.MapRequest) (domain.HexMap, error) {
	req, warnings, err := b.resolveStorm(req)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("lookup").Inc()
		return domain.HexMap{}, err
	}
	if err := req.Validate(b.baseRes); err != nil {
		b.metrics.BuildErrors.WithLabelValues("validate").Inc()
		return domain.HexMap{}, err
	}
	country, err := b.countries.Country(req.Country)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("lookup").Inc()
		return domain.HexMap{}, err
	}

	agg, err := b.aggregation(ctx, req, country.BBox)
	if err != nil {
		return domain.HexMap{}, err
	}

	m, err := domain.NewHexMap(req, country.BBox, b.baseRes, agg)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("classify").Inc()
		return domain.HexMap{}, err
	}
	m.Warnings = warnings

	b.metrics.MapsBuilt.WithLabelValues(req.Variable.String()).Inc()
	b.metrics.CellsPerMap.Observe(float64(len(m.Cells)))
	b.logger.Info("hex map built",
		"id", m.ID,
		"cells", len(m.Cells),
		"resolution", m.Resolution,
	)
	return m, nil
}

// resolveStorm fills the date from the named storm and warns when the storm
// belongs to another country.
func (b *Builder) resolveStorm(req domain.MapRequest) (domain.MapRequest, []string, error) {
	if req.Storm == "" {
		return req, nil, nil
	}
	if b.storms == nil {
		return req, nil, fmt.Errorf("%w: %q", domain.ErrStormNotFound, req.Storm)
	}
	storm, err := b.storms.Storm(req.Storm)
	if err != nil {
		return req, nil, err
	}
	var warnings []string
	if req.Date.IsZero() {
		req.Date = storm.Date
	} else if !req.Date.Equal(storm.Date) {
		warnings = append(warnings, fmt.Sprintf("storm %s is dated %s, map uses %s",
			storm.Name, storm.Date.Format(time.DateOnly), req.Date.Format(time.DateOnly)))
	}
	if storm.ISO3 != req.Country {
		warnings = append(warnings, fmt.Sprintf("storm %s hit %s, not %s", storm.Name, storm.ISO3, req.Country))
	}
	return req, warnings, nil
}

func (b *Builder) aggregation(ctx context.Context, req domain.MapRequest, bbox domain.BoundingBox) (domain.AggregationMap, error) {
	key := cacheKey{Dataset: req.DatasetName(), Resolution: req.Resolution}
	if agg, ok := b.cache.get(key); ok {
		b.metrics.AggregationCache.WithLabelValues("hit").Inc()
		return agg, nil
	}
	b.metrics.AggregationCache.WithLabelValues("miss").Inc()

	// The computation is shared, so it runs detached from whichever caller
	// started it; each caller still stops waiting when its own ctx ends.
	ch := b.inflight.DoChan(key.String(), func() (any, error) {
		sharedCtx, cancel := b.sharedContext(ctx)
		defer cancel()
		agg, err := b.compute(sharedCtx, req, bbox)
		if err != nil {
			return nil, err
		}
		b.cache.add(key, agg)
		return agg, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.AggregationMap), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Builder) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if b.timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, b.timeout)
}

func (b *Builder) compute(ctx context.Context, req domain.MapRequest, bbox domain.BoundingBox) (domain.AggregationMap, error) {
	rr, err := domain.NewRetrievalRequest(req, bbox)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("validate").Inc()
		return nil, err
	}
	path, err := b.retriever.Retrieve(ctx, rr)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("retrieve").Inc()
		return nil, fmt.Errorf("retrieve %s: %w", rr.FileName, err)
	}

	names, err := req.Variable.FieldNames()
	if err != nil {
		return nil, err
	}
	ds, err := b.loader.Load(ctx, path, names)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	wf, err := domain.ReduceWindField(ds, req.Variable)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("reduce").Inc()
		return nil, err
	}

	start := time.Now()
	agg, err := domain.AggregateSharded(ctx, wf.Latitudes, wf.Longitudes, wf.Magnitude, b.baseRes, req.Resolution, b.workers)
	if err != nil {
		b.metrics.BuildErrors.WithLabelValues("aggregate").Inc()
		return nil, err
	}
	b.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	b.metrics.GridPoints.Observe(float64(wf.Points()))
	b.logger.Debug("grid aggregated",
		"dataset", rr.FileName,
		"points", wf.Points(),
		"cells", len(agg),
		"workers", b.workers,
	)
	return agg, nil
}
