package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"snapybara-server/cache"
	"snapybara-server/metrics"
	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

// ExternalSource is a place provider queried alongside the local store.
// Implementations degrade to an empty slice on failure.
type ExternalSource interface {
	Name() string
	NearbySearch(ctx context.Context, lat, lon float64, radius int, categories []models.Category) []places.Place
}

type SearchParams struct {
	Lat        float64
	Lon        float64
	Radius     int
	Categories []models.Category
	Page       int
	Limit      int
	// Refresh skips the cache read; the result is still written through.
	Refresh  bool
	ViewerID string
}

type SearchSources struct {
	Local    int `json:"local"`
	External int `json:"external"`
}

type SearchResult struct {
	Data    []models.POISummary `json:"data"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Sources SearchSources       `json:"sources"`
	Cached  bool                `json:"cached"`
}

type GeoServiceConfig struct {
	// DedupeDistance is how close, in meters, an external result may be to
	// an already accepted one before it is dropped.
	DedupeDistance  float64
	LocalLimit      int
	ExternalTimeout time.Duration
}

// fetchMargin widens the stored query so that any centre rounding to the
// same key is still fully covered.
const fetchMargin = 150

type GeoService struct {
	points  PointFinder
	sources []ExternalSource
	cache   *cache.Manager
	cfg     GeoServiceConfig
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

func NewGeoService(points PointFinder, sources []ExternalSource, manager *cache.Manager, cfg GeoServiceConfig, logger *zap.Logger, collector *metrics.Collector) *GeoService {
	if cfg.DedupeDistance <= 0 {
		cfg.DedupeDistance = 50
	}
	if cfg.LocalLimit <= 0 {
		cfg.LocalLimit = 200
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeoService{
		points:  points,
		sources: sources,
		cache:   manager,
		cfg:     cfg,
		logger:  logger.Named("search"),
		metrics: collector,
		tracer:  otel.Tracer("snapybara-server/services"),
	}
}

func validateSearch(p SearchParams) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return errors.InvalidInput("lat must be within [-90, 90]")
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return errors.InvalidInput("lon must be within [-180, 180]")
	}
	if p.Radius <= 0 {
		return errors.InvalidInput("radius must be positive")
	}
	if p.Page < 1 {
		return errors.InvalidInput("page must be at least 1")
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return errors.InvalidInput("limit must be within [1, %d]", MaxPageLimit)
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return errors.InvalidInput("unknown category %q", c)
		}
	}
	return nil
}

// Search merges visible local points with external provider results around
// a centre. The merged list for the radius bucket is cached; distance
// filtering, ordering and pagination are applied on every read.
func (s *GeoService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if err := validateSearch(p); err != nil {
		return nil, err
	}
	p.Radius = cache.ClampRadius(p.Radius)

	ctx, span := s.tracer.Start(ctx, "GeoService.Search", trace.WithAttributes(
		attribute.Float64("search.lat", p.Lat),
		attribute.Float64("search.lon", p.Lon),
		attribute.Int("search.radius", p.Radius),
		attribute.Bool("search.refresh", p.Refresh),
	))
	defer span.End()

	key := cache.SearchKey(p.Lat, p.Lon, p.Radius, p.Categories, p.ViewerID)
	span.SetAttributes(attribute.String("cache.key", key))

	if !p.Refresh {
		var cached []models.POISummary
		if s.cache.GetJSON(ctx, key, &cached) {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			res := s.page(p, cached)
			res.Cached = true
			return res, nil
		}
	}

	merged, err := s.collect(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.cache.Put(ctx, key, merged, cache.TierSearch)
	s.cache.Index(ctx, cache.CellsCovering(p.Lat, p.Lon, cache.RadiusBucket(p.Radius)), key)

	return s.page(p, merged), nil
}

// collect queries the local store and every external source concurrently
// over the whole radius bucket. A local failure fails the search.
func (s *GeoService) collect(ctx context.Context, p SearchParams) ([]models.POISummary, error) {
	fetchRadius := cache.RadiusBucket(p.Radius) + fetchMargin
	centre := models.Coordinates{Lat: p.Lat, Lon: p.Lon}

	var local []models.POIWithDistance
	external := make([][]places.Place, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.points.FindNear(gctx, models.NearQuery{
			Center:     centre,
			Radius:     float64(fetchRadius),
			Categories: p.Categories,
			ViewerID:   p.ViewerID,
			Limit:      s.cfg.LocalLimit,
		})
		if err != nil {
			return fmt.Errorf("local search: %w", err)
		}
		local = found
		return nil
	})
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, s.cfg.ExternalTimeout)
			defer cancel()
			external[i] = src.NearbySearch(ectx, p.Lat, p.Lon, min(fetchRadius, cache.MaxRadius), p.Categories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeResults(centre, local, external, s.cfg.DedupeDistance)
	s.logger.Debug("search merged",
		zap.Int("local", len(local)),
		zap.Int("merged", len(merged)))
	return merged, nil
}

// mergeResults keeps every local point, then adds external places that
// neither share an external id with an accepted result nor lie within
// dedupe meters of a result accepted from an earlier source.
func mergeResults(centre models.Coordinates, local []models.POIWithDistance, external [][]places.Place, dedupe float64) []models.POISummary {
	merged := make([]models.POISummary, 0, len(local))
	seenIDs := map[string]bool{}

	for i := range local {
		poi := &local[i].POI
		merged = append(merged, models.SummaryFromPOI(poi, models.DistanceMeters(centre, poi.Coordinates())))
		if poi.ExternalID != "" {
			seenIDs[poi.ExternalID] = true
		}
	}

	for _, batch := range external {
		prior := len(merged)
		for _, place := range batch {
			if place.PlaceID == "" || seenIDs[place.PlaceID] {
				continue
			}
			if nearAny(place.Coordinates(), merged[:prior], dedupe) {
				continue
			}
			seenIDs[place.PlaceID] = true
			merged = append(merged, place.Summary(models.DistanceMeters(centre, place.Coordinates())))
		}
	}
	return merged
}

func nearAny(c models.Coordinates, items []models.POISummary, threshold float64) bool {
	for _, it := range items {
		if models.DistanceMeters(c, models.Coordinates{Lat: it.Lat, Lon: it.Lon}) <= threshold {
			return true
		}
	}
	return false
}

// page filters items to the requested circle, orders them by distance then
// rating and slices the requested page.
func (s *GeoService) page(p SearchParams, items []models.POISummary) *SearchResult {
	centre := models.Coordinates{Lat: p.Lat, Lon: p.Lon}
	radius := float64(p.Radius)

	inRange := make([]models.POISummary, 0, len(items))
	var sources SearchSources
	for _, it := range items {
		it.Distance = math.Round(models.DistanceMeters(centre, models.Coordinates{Lat: it.Lat, Lon: it.Lon})*10) / 10
		if it.Distance > radius {
			continue
		}
		if it.Source == models.SourceLocal {
			sources.Local++
		} else {
			sources.External++
		}
		inRange = append(inRange, it)
	}
	sortResults(inRange)
	s.metrics.SearchMerged(sources.Local, sources.External)

	start := min((p.Page-1)*p.Limit, len(inRange))
	end := min(start+p.Limit, len(inRange))
	return &SearchResult{
		Data:    inRange[start:end],
		Total:   len(inRange),
		Page:    p.Page,
		Limit:   p.Limit,
		Sources: sources,
	}
}

func sortResults(items []models.POISummary) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Distance != items[j].Distance {
			return items[i].Distance < items[j].Distance
		}
		if items[i].AverageRating != items[j].AverageRating {
			return items[i].AverageRating > items[j].AverageRating
		}
		return items[i].Name < items[j].Name
	})
}

// AreaPoints lists the public local points of the area cell containing the
// coordinates. The cell listing is cached under the cell's own key, which
// point mutations invalidate directly.
func (s *GeoService) AreaPoints(ctx context.Context, lat, lon float64) ([]models.POISummary, error) {
	centre := models.Coordinates{Lat: lat, Lon: lon}
	if !centre.Valid() {
		return nil, errors.InvalidInput("coordinates out of range")
	}

	ctx, span := s.tracer.Start(ctx, "GeoService.AreaPoints")
	defer span.End()

	cell := cache.AreaCell(lat, lon)
	var items []models.POISummary
	if !s.cache.GetJSON(ctx, cell.Key(), &items) {
		found, err := s.points.FindInBox(ctx, cell.Bounds(), "")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("area points: %w", err)
		}
		items = make([]models.POISummary, 0, len(found))
		for i := range found {
			items = append(items, models.SummaryFromPOI(&found[i], 0))
		}
		s.cache.Put(ctx, cell.Key(), items, cache.TierSearch)
	}

	for i := range items {
		items[i].Distance = math.Round(models.DistanceMeters(centre, models.Coordinates{Lat: items[i].Lat, Lon: items[i].Lon})*10) / 10
	}
	sortResults(items)
	return items, nil
}
