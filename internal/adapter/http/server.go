package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
	"github.com/couchcryptid/storm-wind-hexmap/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MapBuilder builds a hex map for a request.
type MapBuilder interface {
	Build(ctx context.Context, req domain.MapRequest) (domain.HexMap, error)
}

// CountryLister lists the selectable countries.
type CountryLister interface {
	All() []domain.Country
}

// StormLister lists the reference storms.
type StormLister interface {
	All() []domain.Storm
}

// Options wires the server to the map builder and lookup tables.
type Options struct {
	Addr              string
	Maps              MapBuilder
	Countries         CountryLister
	Storms            StormLister
	Ready             sharedobs.ReadinessChecker
	Metrics           *observability.Metrics
	DefaultResolution int
	// BuildTimeout bounds one on-demand map build, CDS job included.
	BuildTimeout time.Duration
}

// Server exposes the map API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer        *http.Server
	maps              MapBuilder
	countries         CountryLister
	storms            StormLister
	defaultResolution int
	buildTimeout      time.Duration
	logger            *slog.Logger
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(opts Options, logger *slog.Logger) *Server {
	buildTimeout := opts.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = 10 * time.Minute
	}

	s := &Server{
		maps:              opts.Maps,
		countries:         opts.Countries,
		storms:            opts.Storms,
		defaultResolution: opts.DefaultResolution,
		buildTimeout:      buildTimeout,
		logger:            logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)
	if opts.Metrics != nil {
		r.Use(observability.MetricsMiddleware(opts.Metrics))
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(opts.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/countries", s.handleCountries)
		r.Get("/storms", s.handleStorms)
		r.Get("/legend", s.handleLegend)
		r.Get("/hexmap", s.handleHexMap)
	})
	r.Get("/map", s.handleMapPage)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      buildTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// statusFor maps a build error to a response status: bad input is the
// caller's fault, unknown names are missing resources, and anything else is
// an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCountryNotFound), errors.Is(err, domain.ErrStormNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidVariableChoice),
		errors.Is(err, domain.ErrInvalidResolution),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidHours),
		errors.Is(err, domain.ErrInvalidBoundingBox):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("map request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
