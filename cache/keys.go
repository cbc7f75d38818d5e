package cache

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"snapybara-server/models"
)

// Tier is a TTL class chosen by how volatile the cached data is.
type Tier int

const (
	TierSearch Tier = iota
	TierDetails
	TierPhoto
	TierAutocomplete
)

const (
	SearchTTL       = time.Hour
	DetailsTTL      = 24 * time.Hour
	PhotoTTL        = 7 * 24 * time.Hour
	AutocompleteTTL = 30 * time.Minute

	// StaleRetention is how long a stale copy outlives its fresh entry.
	StaleRetention = 24 * time.Hour
)

func (t Tier) TTL() time.Duration {
	switch t {
	case TierDetails:
		return DetailsTTL
	case TierPhoto:
		return PhotoTTL
	case TierAutocomplete:
		return AutocompleteTTL
	default:
		return SearchTTL
	}
}

func (t Tier) String() string {
	switch t {
	case TierDetails:
		return "details"
	case TierPhoto:
		return "photo"
	case TierAutocomplete:
		return "autocomplete"
	default:
		return "search"
	}
}

const (
	MinRadius = 1
	MaxRadius = 50000

	// search keys: 3 decimals, about 110m
	keyPrecision = 1000
	// area cells: 2 decimals, about 1.1km
	cellPrecision = 100
	cellSize      = 1.0 / cellPrecision
	// points closer than this to a cell edge also belong to the neighbour
	cellBoundaryMargin = 0.001
	// at most maxCellSpan cells each side of the centre are indexed
	maxCellSpan = 4

	metersPerDegreeLat = 111320.0
)

var radiusBuckets = []int{100, 250, 500, 1000, 2000, 5000, 10000, 25000, MaxRadius}

// ClampRadius bounds radius to [MinRadius, MaxRadius].
func ClampRadius(radius int) int {
	if radius < MinRadius {
		return MinRadius
	}
	if radius > MaxRadius {
		return MaxRadius
	}
	return radius
}

// RadiusBucket returns the smallest bucket boundary covering the clamped radius.
func RadiusBucket(radius int) int {
	radius = ClampRadius(radius)
	for _, b := range radiusBuckets {
		if radius <= b {
			return b
		}
	}
	return MaxRadius
}

func round(v float64, precision float64) float64 {
	r := math.Round(v*precision) / precision
	if r == 0 {
		// avoid "-0.000"
		return 0
	}
	return r
}

func formatCoord(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func categoriesTag(categories []models.Category) string {
	if len(categories) == 0 {
		return ""
	}
	seen := map[string]struct{}{}
	var cats []string
	for _, c := range categories {
		if _, ok := seen[string(c)]; ok {
			continue
		}
		seen[string(c)] = struct{}{}
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	return ":c" + strings.Join(cats, ",")
}

// SearchKey identifies a radius search. Coordinates are rounded to three
// decimals, the radius is bucketed and categories are order-insensitive.
// A non-empty viewerID scopes the key to that user.
func SearchKey(lat, lon float64, radius int, categories []models.Category, viewerID string) string {
	key := fmt.Sprintf("search:%s:%s:r%d%s",
		formatCoord(round(lat, keyPrecision), 3),
		formatCoord(round(lon, keyPrecision), 3),
		RadiusBucket(radius),
		categoriesTag(categories),
	)
	if viewerID != "" {
		key += ":u" + viewerID
	}
	return key
}

func locationTag(loc *models.Coordinates, radius int) string {
	if loc == nil {
		return ""
	}
	return fmt.Sprintf(":%s:%s:r%d",
		formatCoord(round(loc.Lat, keyPrecision), 3),
		formatCoord(round(loc.Lon, keyPrecision), 3),
		RadiusBucket(radius),
	)
}

func TextSearchKey(query string, loc *models.Coordinates, radius int) string {
	return "text:" + normalizeText(query) + locationTag(loc, radius)
}

func AutocompleteKey(input string, loc *models.Coordinates, radius int) string {
	return "autocomplete:" + normalizeText(input) + locationTag(loc, radius)
}

func DetailsKey(placeID string) string {
	return "details:" + placeID
}

func PhotoKey(ref string, maxWidth int) string {
	return fmt.Sprintf("photo:%s:w%d", ref, maxWidth)
}

func staleKey(key string) string {
	return "stale:" + key
}

// Cell is a coarse geographic bucket used to index and invalidate cached
// searches. Indices are coordinates scaled by cellPrecision.
type Cell struct {
	LatIndex int
	LonIndex int
}

// AreaCell returns the cell owning the coordinates.
func AreaCell(lat, lon float64) Cell {
	return Cell{
		LatIndex: clampIndex(int(math.Round(lat*cellPrecision)), 90*cellPrecision),
		LonIndex: wrapLonIndex(int(math.Round(lon * cellPrecision))),
	}
}

// wrapLonIndex folds a longitude index into [-180, 180) so that cells on
// either side of the antimeridian are neighbours.
func wrapLonIndex(i int) int {
	const half = 180 * cellPrecision
	i = (i + half) % (2 * half)
	if i < 0 {
		i += 2 * half
	}
	return i - half
}

func clampIndex(i, limit int) int {
	if i < -limit {
		return -limit
	}
	if i > limit {
		return limit
	}
	return i
}

// Key is the cache key of the cell's own entry.
func (c Cell) Key() string {
	return fmt.Sprintf("area:%s:%s:c1km",
		formatCoord(round(float64(c.LatIndex)/cellPrecision, cellPrecision), 2),
		formatCoord(round(float64(c.LonIndex)/cellPrecision, cellPrecision), 2),
	)
}

// IndexKey stores the search keys served from the cell.
func (c Cell) IndexKey() string {
	return "idx:" + c.Key()
}

// Bounds is the cell's half-open rectangle.
func (c Cell) Bounds() models.BoundingBox {
	lat := float64(c.LatIndex) / cellPrecision
	lon := float64(c.LonIndex) / cellPrecision
	return models.BoundingBox{
		MinLat: lat - cellSize/2,
		MinLon: lon - cellSize/2,
		MaxLat: lat + cellSize/2,
		MaxLon: lon + cellSize/2,
	}
}

// CellsForPoint returns the cell owning the point plus any neighbour whose
// edge lies within the boundary margin.
func CellsForPoint(lat, lon float64) []Cell {
	home := AreaCell(lat, lon)
	latOffsets := []int{0}
	lonOffsets := []int{0}

	dLat := lat - float64(home.LatIndex)/cellPrecision
	if cellSize/2-math.Abs(dLat) < cellBoundaryMargin {
		latOffsets = append(latOffsets, sign(dLat))
	}
	dLon := lon - math.Round(lon*cellPrecision)/cellPrecision
	if cellSize/2-math.Abs(dLon) < cellBoundaryMargin {
		lonOffsets = append(lonOffsets, sign(dLon))
	}

	cells := make([]Cell, 0, len(latOffsets)*len(lonOffsets))
	for _, dy := range latOffsets {
		for _, dx := range lonOffsets {
			cells = append(cells, Cell{
				LatIndex: clampIndex(home.LatIndex+dy, 90*cellPrecision),
				LonIndex: wrapLonIndex(home.LonIndex + dx),
			})
		}
	}
	return cells
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

// CellsCovering returns every cell intersecting the bounding box of a radius
// search, limited to maxCellSpan cells on each side of the centre. Searches
// wider than that are only indexed near their centre.
func CellsCovering(lat, lon float64, radius int) []Cell {
	center := AreaCell(lat, lon)
	r := float64(ClampRadius(radius))

	dLat := r / metersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	dLon := 180.0
	if cosLat > 1e-6 {
		dLon = math.Min(180, r/(metersPerDegreeLat*cosLat))
	}

	minLat := max(AreaCell(lat-dLat, lon).LatIndex, center.LatIndex-maxCellSpan)
	maxLat := min(AreaCell(lat+dLat, lon).LatIndex, center.LatIndex+maxCellSpan)
	// longitude offsets are taken before wrapping so a box crossing the
	// antimeridian continues on the other side
	lonIndex := int(math.Round(lon * cellPrecision))
	minLon := max(int(math.Round((lon-dLon)*cellPrecision))-lonIndex, -maxCellSpan)
	maxLon := min(int(math.Round((lon+dLon)*cellPrecision))-lonIndex, maxCellSpan)

	cells := make([]Cell, 0, (maxLat-minLat+1)*(maxLon-minLon+1))
	for y := minLat; y <= maxLat; y++ {
		for dx := minLon; dx <= maxLon; dx++ {
			cells = append(cells, Cell{LatIndex: y, LonIndex: wrapLonIndex(center.LonIndex + dx)})
		}
	}
	return cells
}
