package locationiq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

// MinQueryLength is the provider-side minimum autocomplete query length.
// The session layer accepts shorter input (down to 2 runes) purely so the UI
// can show a loading affordance earlier; the actual call still enforces 3.
const MinQueryLength = 3

const defaultSuggestionLimit = 5

// Client implements domain.Geocoder against a LocationIQ-style API:
// /search, /reverse, and /autocomplete, each returning a results array.
// It performs exactly one upstream request per call and classifies every
// failure into the result value; retry policy belongs to callers.
type Client struct {
	key        string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a geocoding client with a hard per-request timeout.
func NewClient(key string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		key: key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://us1.locationiq.com/v1",
		metrics: metrics,
		logger:  logger,
	}
}

// WithBaseURL overrides the provider endpoint, used for regional hosts.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// ForwardGeocode resolves a free-text address to coordinates. The first
// result is authoritative. On no results the original input is echoed back
// in FormattedAddress so the UI can still display something.
func (c *Client) ForwardGeocode(ctx context.Context, address string) domain.GeocodeResult {
	if strings.TrimSpace(address) == "" {
		return domain.GeocodeFailure(domain.ErrInvalidInput, "address must not be empty")
	}

	params := url.Values{
		"key":            {c.key},
		"q":              {address},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}

	places, kind, msg := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode(), "forward")
	if kind != domain.ErrNone {
		result := domain.GeocodeFailure(kind, msg)
		if kind == domain.ErrNoResults {
			result.FormattedAddress = address
		}
		return result
	}

	p := places[0]
	coords, err := p.coordinates()
	if err != nil {
		return domain.GeocodeFailure(domain.ErrNetwork, err.Error())
	}

	return domain.GeocodeResult{
		Success:          true,
		Coordinates:      &coords,
		FormattedAddress: p.DisplayName,
		Country:          p.Address.Country,
		City:             p.Address.city(),
		State:            p.Address.State,
	}
}

// ReverseGeocode resolves coordinates to an address. On no results it
// synthesizes a "lat, lng" display label so callers have a usable fallback;
// that outcome is not an error beyond logging.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) domain.GeocodeResult {
	if !domain.ValidCoordinates(lat, lng) {
		return domain.GeocodeFailure(domain.ErrInvalidInput,
			fmt.Sprintf("coordinates out of range: %v, %v", lat, lng))
	}

	params := url.Values{
		"key":            {c.key},
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lng, 'f', 6, 64)},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}

	places, kind, msg := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode(), "reverse")
	if kind != domain.ErrNone {
		result := domain.GeocodeFailure(kind, msg)
		if kind == domain.ErrNoResults {
			result.FormattedAddress = domain.FallbackLabel(lat, lng)
		}
		return result
	}

	p := places[0]
	result := domain.GeocodeResult{
		Success:          true,
		FormattedAddress: p.DisplayName,
		Country:          p.Address.Country,
		City:             p.Address.city(),
		State:            p.Address.State,
	}
	if coords, err := p.coordinates(); err == nil {
		result.Coordinates = &coords
	}
	return result
}

// Autocomplete returns ranked partial-address matches in provider relevance
// order. Queries shorter than MinQueryLength are rejected as InvalidInput.
func (c *Client) Autocomplete(ctx context.Context, query string, opts domain.AutocompleteOptions) domain.AutocompleteResult {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		return domain.AutocompleteResult{
			ErrorKind:    domain.ErrInvalidInput,
			ErrorMessage: fmt.Sprintf("query must be at least %d characters", MinQueryLength),
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	params := url.Values{
		"key":            {c.key},
		"q":              {query},
		"format":         {"json"},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"1"},
	}
	if opts.CountryBias != "" {
		params.Set("countrycodes", strings.ToLower(opts.CountryBias))
	}

	places, kind, msg := c.doRequest(ctx, c.baseURL+"/autocomplete?"+params.Encode(), "autocomplete")
	if kind == domain.ErrNoResults {
		// An empty match set is a valid answer for autocomplete.
		return domain.AutocompleteResult{Success: true, Suggestions: []domain.Suggestion{}}
	}
	if kind != domain.ErrNone {
		return domain.AutocompleteResult{ErrorKind: kind, ErrorMessage: msg}
	}

	suggestions := make([]domain.Suggestion, 0, len(places))
	for _, p := range places {
		s := domain.Suggestion{
			Address: p.DisplayName,
			Country: p.Address.Country,
			City:    p.Address.city(),
			State:   p.Address.State,
		}
		if coords, err := p.coordinates(); err == nil {
			s.Coordinates = &coords
		}
		suggestions = append(suggestions, s)
	}

	return domain.AutocompleteResult{Success: true, Suggestions: suggestions}
}

// doRequest performs one provider call and classifies the outcome. A nil
// place slice is always accompanied by a non-ErrNone kind.
func (c *Client) doRequest(ctx context.Context, fullURL, method string) ([]place, domain.ErrorKind, string) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, domain.ErrNetwork, fmt.Sprintf("create request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := domain.ErrNetwork
		if isTimeout(err) {
			kind = domain.ErrTimeout
		}
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("geocode request failed", "method", method, "kind", string(kind), "error", err)
		return nil, kind, fmt.Sprintf("%s geocode request: %v", method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Error("geocoding provider rejected credentials",
			"method", method, "status", resp.StatusCode, "body", string(body))
		return nil, domain.ErrUnauthorized, fmt.Sprintf("provider rejected credentials: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, domain.ErrRateLimited, "provider rate limit exceeded"
	case resp.StatusCode == http.StatusNotFound:
		// The provider answers 404 when nothing matches.
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		return nil, domain.ErrNoResults, "no matches"
	default:
		body, _ := io.ReadAll(resp.Body)
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("geocode request failed", "method", method, "status", resp.StatusCode)
		return nil, domain.ErrNetwork, fmt.Sprintf("provider error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, domain.ErrNetwork, fmt.Sprintf("decode response: %v", err)
	}

	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		return nil, domain.ErrNoResults, "no matches"
	}

	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return places, domain.ErrNone, ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Provider response types. Coordinates arrive as decimal strings.

type place struct {
	Lat         string       `json:"lat"`
	Lon         string       `json:"lon"`
	DisplayName string       `json:"display_name"`
	Address     placeAddress `json:"address"`
}

type placeAddress struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
}

// city collapses the provider's city/town/village split into one field.
func (a placeAddress) city() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

func (p place) coordinates() (domain.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed latitude %q in response", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed longitude %q in response", p.Lon)
	}
	return domain.Coordinates{Lon: lon, Lat: lat}, nil
}
