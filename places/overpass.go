package places

import (
	"context"
	"encoding/json"
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

type OverpassConfig struct {
	URL     string
	Timeout time.Duration
	Limit   int
}

// OverpassClient finds named natural and touristic nodes in open map data.
type OverpassClient struct {
	cfg     OverpassConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

func NewOverpassClient(cfg OverpassConfig, logger *zap.Logger, collector *metrics.Collector) *OverpassClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("overpass")

	return &OverpassClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("overpass", logger),
		logger:  logger,
		metrics: collector,
		tracer:  otel.Tracer("snapybara-server/places"),
	}
}

func (c *OverpassClient) Name() string {
	return models.SourceOpenMap
}

func (c *OverpassClient) Enabled() bool {
	return c.cfg.URL != ""
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

var overpassSelectors = []string{
	`["natural"~"^(peak|volcano|saddle|cliff|waterfall|beach|wood|spring|cave_entrance)$"]`,
	`["waterway"="waterfall"]`,
	`["tourism"~"^(viewpoint|attraction|museum)$"]`,
	`["amenity"="place_of_worship"]`,
	`["historic"]`,
}

func (c *OverpassClient) query(lat, lon float64, radius int) string {
	timeout := int(c.cfg.Timeout / time.Second)
	if timeout < 1 {
		timeout = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeout)
	for _, sel := range overpassSelectors {
		fmt.Fprintf(&b, "  node(around:%d,%f,%f)[\"name\"]%s;\n", radius, lat, lon, sel)
	}
	fmt.Fprintf(&b, ");\nout body %d;", c.cfg.Limit)
	return b.String()
}

// NearbySearch returns named nodes around the coordinates, filtered to the
// requested categories when any are given.
func (c *OverpassClient) NearbySearch(ctx context.Context, lat, lon float64, radius int, categories []models.Category) []Place {
	if !c.Enabled() {
		return nil
	}
	radius = cache.ClampRadius(radius)

	ctx, span := c.tracer.Start(ctx, "overpass.nearby", trace.WithAttributes(attribute.Int("search.radius", radius)))
	defer span.End()

	form := url.Values{"data": {c.query(lat, lon, radius)}}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
		}
		var out overpassResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	})

	c.metrics.ProviderCall(c.Name(), "interpreter", outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("overpass request failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Int("radius", radius),
			zap.Error(err))
		return nil
	}

	wanted := map[models.Category]bool{}
	for _, cat := range categories {
		wanted[cat] = true
	}

	elements := res.(*overpassResponse).Elements
	places := make([]Place, 0, len(elements))
	for _, el := range elements {
		name := el.Tags["name"]
		if el.Type != "node" || name == "" {
			continue
		}
		p := el.toPlace()
		if len(wanted) > 0 && !wanted[p.Category] {
			continue
		}
		places = append(places, p)
	}
	return places
}

// tagCategory maps OSM tags to a category, keeping the highest priority match.
func tagCategory(tags map[string]string) models.Category {
	var found []models.Category
	switch tags["natural"] {
	case "peak", "volcano", "saddle", "cliff":
		found = append(found, models.CategoryMountain)
	case "wood":
		found = append(found, models.CategoryForest)
	case "waterfall":
		found = append(found, models.CategoryWaterfall)
	case "beach":
		found = append(found, models.CategoryBeach)
	case "spring", "cave_entrance":
		found = append(found, models.CategoryLandscape)
	}
	if tags["waterway"] == "waterfall" {
		found = append(found, models.CategoryWaterfall)
	}
	if tags["amenity"] == "place_of_worship" {
		found = append(found, models.CategoryReligious)
	}
	if tags["historic"] != "" || tags["tourism"] == "museum" {
		found = append(found, models.CategoryHistorical)
	}
	switch tags["tourism"] {
	case "viewpoint", "attraction":
		found = append(found, models.CategoryLandscape)
	}

	best := models.CategoryOther
	for _, c := range found {
		if priority(c) < priority(best) {
			best = c
		}
	}
	return best
}

func (el overpassElement) toPlace() Place {
	name := el.Tags["name"]
	category := tagCategory(el.Tags)
	if category == models.CategoryOther || category == models.CategoryLandscape {
		if c, ok := categoryFromName(name, false); ok {
			category = c
		}
	}

	address := strings.TrimSpace(strings.Join(nonEmpty(
		strings.TrimSpace(el.Tags["addr:housenumber"]+" "+el.Tags["addr:street"]),
		el.Tags["addr:city"],
	), ", "))

	meta := &models.PlaceMetadata{
		Source:           models.SourceOpenMap,
		FormattedAddress: address,
		Phone:            el.Tags["phone"],
		Website:          el.Tags["website"],
	}
	if oh := el.Tags["opening_hours"]; oh != "" {
		meta.OpeningHours = []string{oh}
	}

	return Place{
		PlaceID:  "osm:node/" + strconv.FormatInt(el.ID, 10),
		Name:     name,
		Lat:      el.Lat,
		Lon:      el.Lon,
		Category: category,
		Address:  address,
		Source:   models.SourceOpenMap,
		Metadata: meta,
	}
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
