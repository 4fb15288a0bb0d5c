package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-wind-hexmap/internal/adapter/render"
	"github.com/couchcryptid/storm-wind-hexmap/internal/domain"
)

type legendResponse struct {
	Variable domain.Variable      `json:"variable"`
	Title    string               `json:"title"`
	Legend   []domain.LegendEntry `json:"legend"`
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.countries.All())
}

func (s *Server) handleStorms(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.storms.All())
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	v, err := domain.ParseVariable(r.URL.Query().Get("variable"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	legend, err := domain.Legend(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, legendResponse{Variable: v, Title: v.Title(), Legend: legend})
}

func (s *Server) handleHexMap(w http.ResponseWriter, r *http.Request) {
	m, ok := s.build(w, r)
	if !ok {
		return
	}
	data, err := render.MarshalGeoJSON(m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	m, ok := s.build(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.HTML(w, m); err != nil {
		s.logger.Error("render map page", "error", err, "id", m.ID)
	}
}

// build parses the query and runs the builder. On failure it has already
// written the error response.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (domain.HexMap, bool) {
	req, err := mapRequestFromQuery(r.URL.Query(), s.defaultResolution)
	if err != nil {
		s.writeError(w, r, err)
		return domain.HexMap{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.buildTimeout)
	defer cancel()

	m, err := s.maps.Build(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return domain.HexMap{}, false
	}
	return m, true
}

// mapRequestFromQuery reads country, date, variable, resolution, hours and
// storm from query parameters. The variable defaults to gust.
func mapRequestFromQuery(q url.Values, defaultResolution int) (domain.MapRequest, error) {
	req := domain.MapRequest{
		Country:    strings.ToUpper(strings.TrimSpace(q.Get("country"))),
		Resolution: defaultResolution,
		Storm:      strings.TrimSpace(q.Get("storm")),
		Variable:   domain.Gust,
	}

	if v := q.Get("variable"); v != "" {
		parsed, err := domain.ParseVariable(v)
		if err != nil {
			return domain.MapRequest{}, err
		}
		req.Variable = parsed
	}
	if d := q.Get("date"); d != "" {
		parsed, err := domain.ParseDate(d)
		if err != nil {
			return domain.MapRequest{}, err
		}
		req.Date = parsed
	}
	if res := q.Get("resolution"); res != "" {
		n, err := strconv.Atoi(res)
		if err != nil {
			return domain.MapRequest{}, fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidResolution, res)
		}
		req.Resolution = n
	}
	hours, err := domain.ParseHours(q.Get("hours"))
	if err != nil {
		return domain.MapRequest{}, err
	}
	req.Hours = hours
	return req, nil
}
