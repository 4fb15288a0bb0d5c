package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
)

// MapBuilder builds a hex map for a request.
type MapBuilder interface {
	Build(ctx context.Context, req domain.MapRequest) (domain.HexMap, error)
}

// MapTransformer implements Transformer: it decodes a map request, builds
// the map and serializes it for the sink topic.
type MapTransformer struct {
	builder           MapBuilder
	defaultResolution int
	logger            *slog.Logger
}

// NewTransformer creates a MapTransformer. Requests without a resolution use
// defaultResolution.
func NewTransformer(builder MapBuilder, defaultResolution int, logger *slog.Logger) *MapTransformer {
	return &MapTransformer{
		builder:           builder,
		defaultResolution: defaultResolution,
		logger:            logger,
	}
}

func (t *MapTransformer) Transform(ctx context.Context, raw domain.RawRequest) (domain.OutputEvent, error) {
	req, err := domain.ParseMapRequest(raw.Value, t.defaultResolution)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	m, err := t.builder.Build(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	for _, w := range m.Warnings {
		t.logger.Warn("map request warning", "id", m.ID, "warning", w)
	}

	out, err := domain.SerializeHexMap(m)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	if len(raw.Key) > 0 {
		out.Headers["request_key"] = string(raw.Key)
	}
	return out, nil
}
