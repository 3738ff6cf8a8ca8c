package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

const (
	minQueryRunes = 2
	maxQueryRunes = 200

	defaultSuggestionLimit = 5
	maxSuggestionLimit     = 10

	suggestionTimeout = 8 * time.Second
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the address suggestion API plus health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	geo        domain.Geocoder
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, geo domain.Geocoder, ready ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geo:     geo,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /api/address-suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

type suggestionPayload struct {
	Address string `json:"address"`
	// Coordinates is [longitude, latitude], matching GeoJSON order, or
	// null when the provider returned none.
	Coordinates *[2]float64 `json:"coordinates"`
	City        string      `json:"city,omitempty"`
	State       string      `json:"state,omitempty"`
	Country     string      `json:"country,omitempty"`
}

type suggestionsResponse struct {
	Success     bool                `json:"success"`
	Suggestions []suggestionPayload `json:"suggestions"`
	Error       *string             `json:"error"`
}

func errorResponse(msg string) suggestionsResponse {
	return suggestionsResponse{Error: &msg}
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.metrics.SuggestionRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse("missing query parameter: query"))
		return
	}
	if n := utf8.RuneCountInString(query); n < minQueryRunes || n > maxQueryRunes {
		s.metrics.SuggestionRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse(fmt.Sprintf("query must be %d to %d characters", minQueryRunes, maxQueryRunes)))
		return
	}

	limit := defaultSuggestionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.metrics.SuggestionRequests.WithLabelValues("bad_request").Inc()
			writeJSON(w, http.StatusBadRequest, errorResponse("limit must be a positive integer"))
			return
		}
		limit = min(n, maxSuggestionLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), suggestionTimeout)
	defer cancel()

	result := s.geo.Autocomplete(ctx, query, domain.AutocompleteOptions{
		Limit:       limit,
		CountryBias: r.URL.Query().Get("country"),
	})

	switch {
	case result.Success:
		s.metrics.SuggestionRequests.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, suggestionsResponse{
			Success:     true,
			Suggestions: toPayload(result.Suggestions),
		})
	case result.ErrorKind == domain.ErrInvalidInput:
		// Below the provider's own minimum length. Not worth a client error.
		s.metrics.SuggestionRequests.WithLabelValues("empty").Inc()
		writeJSON(w, http.StatusOK, suggestionsResponse{Success: true, Suggestions: []suggestionPayload{}})
	case result.ErrorKind == domain.ErrRateLimited:
		s.metrics.SuggestionRequests.WithLabelValues("rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, errorResponse("rate limited, retry later"))
	case result.ErrorKind == domain.ErrTimeout || result.ErrorKind == domain.ErrNetwork:
		s.metrics.SuggestionRequests.WithLabelValues("upstream_error").Inc()
		writeJSON(w, http.StatusBadGateway, errorResponse("suggestion provider unavailable"))
	default:
		// Unauthorized and anything unexpected. Details stay in the logs.
		s.metrics.SuggestionRequests.WithLabelValues("error").Inc()
		s.logger.Error("suggestion request failed", "kind", string(result.ErrorKind), "detail", result.ErrorMessage)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func toPayload(suggestions []domain.Suggestion) []suggestionPayload {
	out := make([]suggestionPayload, 0, len(suggestions))
	for _, sg := range suggestions {
		p := suggestionPayload{
			Address: sg.Address,
			City:    sg.City,
			State:   sg.State,
			Country: sg.Country,
		}
		if sg.Coordinates != nil {
			p.Coordinates = &[2]float64{sg.Coordinates.Lon, sg.Coordinates.Lat}
		}
		out = append(out, p)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
