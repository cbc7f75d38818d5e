package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"snapybara-server/cache"
	"snapybara-server/metrics"
	"snapybara-server/models"
)

const detailsFields = "place_id,name,geometry,types,rating,user_ratings_total,formatted_address," +
	"formatted_phone_number,website,photos,opening_hours"

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Client queries a Places API compatible provider. Every failure degrades to
// an empty result and a warning; callers never see provider errors.
type Client struct {
	cfg         Config
	http        *http.Client
	photoClient *http.Client
	breaker     *gobreaker.CircuitBreaker
	cache       *cache.Manager
	logger      *zap.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
}

func NewClient(cfg Config, manager *cache.Manager, logger *zap.Logger, collector *metrics.Collector) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("places")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		photoClient: &http.Client{
			Timeout: cfg.Timeout,
			// the photo endpoint answers with a redirect to the image; keep its Location
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker: newBreaker("places", logger),
		cache:   manager,
		logger:  logger,
		metrics: collector,
		tracer:  otel.Tracer("snapybara-server/places"),
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (c *Client) Name() string {
	return models.SourcePlaces
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

// statusError is a provider answer other than OK or ZERO_RESULTS.
type statusError struct {
	Status  string
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return "provider status " + e.Status
	}
	return fmt.Sprintf("provider status %s: %s", e.Status, e.Message)
}

func checkStatus(status, message string) error {
	if status == StatusOK || status == StatusZeroResults {
		return nil
	}
	return &statusError{Status: status, Message: message}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "error"
	}
}

// loggable drops the API key from logged parameters.
func loggable(params url.Values) string {
	safe := url.Values{}
	for k, v := range params {
		if k != "key" {
			safe[k] = v
		}
	}
	return safe.Encode()
}

// getJSON calls endpoint through the breaker and decodes the response into dst.
// check inspects the decoded payload so provider level failures trip the breaker too.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dst any, check func() error) error {
	ctx, span := c.tracer.Start(ctx, "places."+endpoint, trace.WithAttributes(attribute.String("provider.endpoint", endpoint)))
	defer span.End()

	params.Set("key", c.cfg.APIKey)
	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}
	reqURL := fmt.Sprintf("%s/%s/json?%s", c.cfg.BaseURL, endpoint, params.Encode())

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, check()
	})

	c.metrics.ProviderCall(c.Name(), endpoint, outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("places request failed",
			zap.String("endpoint", endpoint),
			zap.String("params", loggable(params)),
			zap.Error(err))
	}
	return err
}

func setLocation(params url.Values, loc *models.Coordinates, radius int) {
	if loc == nil {
		return
	}
	params.Set("location", fmt.Sprintf("%f,%f", loc.Lat, loc.Lon))
	if radius > 0 {
		params.Set("radius", strconv.Itoa(cache.ClampRadius(radius)))
	}
}

// NearbySearch returns relevant places around the coordinates. A single
// requested category narrows the provider query by keyword; results are then
// filtered to the requested categories.
func (c *Client) NearbySearch(ctx context.Context, lat, lon float64, radius int, categories []models.Category) []Place {
	if !c.Enabled() {
		return nil
	}

	params := url.Values{}
	setLocation(params, &models.Coordinates{Lat: lat, Lon: lon}, radius)
	if len(categories) == 1 {
		if kw := searchKeyword(categories[0]); kw != "" {
			params.Set("keyword", kw)
		}
	}

	var resp apiSearchResponse
	if err := c.getJSON(ctx, "nearbysearch", params, &resp, func() error {
		return checkStatus(resp.Status, resp.ErrorMessage)
	}); err != nil {
		return nil
	}

	wanted := map[models.Category]bool{}
	for _, cat := range categories {
		wanted[cat] = true
	}

	places := make([]Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.PlaceID == "" || !IsRelevant(r.Name, r.Types) {
			continue
		}
		p := r.toPlace()
		if len(wanted) > 0 && !wanted[p.Category] {
			continue
		}
		places = append(places, p)
	}
	return places
}

// TextSearch runs a free text query, optionally biased to a location.
func (c *Client) TextSearch(ctx context.Context, query string, loc *models.Coordinates, radius int) []Place {
	query = strings.TrimSpace(query)
	if !c.Enabled() || query == "" {
		return []Place{}
	}

	places, err := cache.GetOrFetch(ctx, c.cache, cache.TextSearchKey(query, loc, radius), cache.TierSearch,
		func(ctx context.Context) ([]Place, error) {
			params := url.Values{"query": {query}}
			setLocation(params, loc, radius)

			var resp apiSearchResponse
			if err := c.getJSON(ctx, "textsearch", params, &resp, func() error {
				return checkStatus(resp.Status, resp.ErrorMessage)
			}); err != nil {
				return nil, err
			}
			out := make([]Place, 0, len(resp.Results))
			for _, r := range resp.Results {
				if r.PlaceID != "" {
					out = append(out, r.toPlace())
				}
			}
			return out, nil
		})
	if err != nil {
		return []Place{}
	}
	return places
}

// GetDetails returns the full record of a place, or nil when the provider
// does not know it or cannot be reached.
func (c *Client) GetDetails(ctx context.Context, placeID string) *Place {
	if !c.Enabled() || placeID == "" {
		return nil
	}

	place, err := cache.GetOrFetch(ctx, c.cache, cache.DetailsKey(placeID), cache.TierDetails,
		func(ctx context.Context) (*Place, error) {
			params := url.Values{"place_id": {placeID}, "fields": {detailsFields}}

			var resp apiDetailsResponse
			if err := c.getJSON(ctx, "details", params, &resp, func() error {
				return checkStatus(resp.Status, resp.ErrorMessage)
			}); err != nil {
				return nil, err
			}
			if resp.Status != StatusOK || resp.Result.PlaceID == "" {
				return nil, nil
			}
			p := resp.Result.toPlace()
			return &p, nil
		})
	if err != nil {
		return nil
	}
	return place
}

// Autocomplete suggests places for a partial input. Without an API key the
// result is empty with status API_KEY_MISSING.
func (c *Client) Autocomplete(ctx context.Context, input string, loc *models.Coordinates, radius int) AutocompleteResult {
	if !c.Enabled() {
		return AutocompleteResult{Predictions: []Prediction{}, Status: StatusAPIKeyMissing}
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return AutocompleteResult{Predictions: []Prediction{}, Status: StatusZeroResults}
	}

	result, err := cache.GetOrFetch(ctx, c.cache, cache.AutocompleteKey(input, loc, radius), cache.TierAutocomplete,
		func(ctx context.Context) (AutocompleteResult, error) {
			params := url.Values{"input": {input}}
			setLocation(params, loc, radius)

			var resp apiAutocompleteResponse
			if err := c.getJSON(ctx, "autocomplete", params, &resp, func() error {
				return checkStatus(resp.Status, resp.ErrorMessage)
			}); err != nil {
				return AutocompleteResult{}, err
			}
			out := AutocompleteResult{Predictions: make([]Prediction, 0, len(resp.Predictions)), Status: resp.Status}
			for _, p := range resp.Predictions {
				out.Predictions = append(out.Predictions, Prediction{
					PlaceID:       p.PlaceID,
					Description:   p.Description,
					MainText:      p.StructuredFormatting.MainText,
					SecondaryText: p.StructuredFormatting.SecondaryText,
					Types:         p.Types,
				})
			}
			return out, nil
		})
	if err != nil {
		var se *statusError
		status := "UNAVAILABLE"
		if errors.As(err, &se) {
			status = se.Status
		}
		return AutocompleteResult{Predictions: []Prediction{}, Status: status}
	}
	return result
}

// PhotoURL resolves a photo reference to the final image URL, or "" on failure.
func (c *Client) PhotoURL(ctx context.Context, ref string, maxWidth int) string {
	if !c.Enabled() || ref == "" {
		return ""
	}
	if maxWidth <= 0 || maxWidth > 1600 {
		maxWidth = 400
	}

	u, err := cache.GetOrFetch(ctx, c.cache, cache.PhotoKey(ref, maxWidth), cache.TierPhoto,
		func(ctx context.Context) (string, error) {
			return c.resolvePhoto(ctx, ref, maxWidth)
		})
	if err != nil {
		return ""
	}
	return u
}

func (c *Client) resolvePhoto(ctx context.Context, ref string, maxWidth int) (string, error) {
	ctx, span := c.tracer.Start(ctx, "places.photo")
	defer span.End()

	params := url.Values{
		"photo_reference": {ref},
		"maxwidth":        {strconv.Itoa(maxWidth)},
		"key":             {c.cfg.APIKey},
	}
	reqURL := fmt.Sprintf("%s/photo?%s", c.cfg.BaseURL, params.Encode())

	location, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.photoClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, errors.New("redirect without location")
		}
		return loc, nil
	})

	c.metrics.ProviderCall(c.Name(), "photo", outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("places photo request failed", zap.String("params", loggable(params)), zap.Error(err))
		return "", err
	}
	return location.(string), nil
}
