package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryMountain     Category = "mountain"
	CategoryForest       Category = "forest"
	CategoryWaterfall    Category = "waterfall"
	CategoryBeach        Category = "beach"
	CategoryLandscape    Category = "landscape"
	CategoryReligious    Category = "religious"
	CategoryHistorical   Category = "historical"
	CategoryArchitecture Category = "architecture"
	CategoryUrban        Category = "urban"
	CategoryOther        Category = "other"
)

// Categories lists every accepted category in declaration order.
var Categories = []Category{
	CategoryMountain,
	CategoryForest,
	CategoryWaterfall,
	CategoryBeach,
	CategoryLandscape,
	CategoryReligious,
	CategoryHistorical,
	CategoryArchitecture,
	CategoryUrban,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type PointStatus string

const (
	StatusPending  PointStatus = "pending"
	StatusApproved PointStatus = "approved"
	StatusRejected PointStatus = "rejected"
)

func (s PointStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Provenance records where a point came from.
type Provenance string

const (
	ProvenanceLocal    Provenance = "local"
	ProvenanceImported Provenance = "imported"
)

type POI struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ExternalID  string             `json:"external_id,omitempty" bson:"external_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Category    Category           `json:"category" bson:"category"`
	Location    GeoPoint           `json:"location" bson:"location"`
	Tags        []string           `json:"tags" bson:"tags"`
	Address     string             `json:"address" bson:"address"`
	Metadata    *PlaceMetadata     `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Stats       POIStats           `json:"stats" bson:"stats"`
	IsPublic    bool               `json:"is_public" bson:"is_public"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
	Status      PointStatus        `json:"status" bson:"status"`
	Provenance  Provenance         `json:"provenance" bson:"provenance"`
	OwnerID     string             `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

type POIStats struct {
	AverageRating float64 `json:"average_rating" bson:"average_rating"`
	ReviewCount   int     `json:"review_count" bson:"review_count"`
	PhotoCount    int     `json:"photo_count" bson:"photo_count"`
}

// PlaceMetadata holds the fields copied from an external provider when a
// place is imported or shown alongside local points.
type PlaceMetadata struct {
	Source              string   `json:"source,omitempty" bson:"source,omitempty"`
	FormattedAddress    string   `json:"formatted_address,omitempty" bson:"formatted_address,omitempty"`
	Phone               string   `json:"phone,omitempty" bson:"phone,omitempty"`
	Website             string   `json:"website,omitempty" bson:"website,omitempty"`
	OpeningHours        []string `json:"opening_hours,omitempty" bson:"opening_hours,omitempty"`
	PhotoReferences     []string `json:"photo_references,omitempty" bson:"photo_references,omitempty"`
	ProviderTypes       []string `json:"provider_types,omitempty" bson:"provider_types,omitempty"`
	ProviderRating      float64  `json:"provider_rating,omitempty" bson:"provider_rating,omitempty"`
	ProviderRatingCount int      `json:"provider_rating_count,omitempty" bson:"provider_rating_count,omitempty"`
}

func (p *POI) Coordinates() Coordinates {
	return p.Location.LatLon()
}

// VisibleTo reports whether viewerID may read the point.
// Deactivated points are visible to nobody.
func (p *POI) VisibleTo(viewerID string) bool {
	if !p.IsActive {
		return false
	}
	if p.OwnerID != "" && p.OwnerID == viewerID {
		return true
	}
	return p.IsPublic && p.Status == StatusApproved
}

// POIWithDistance is a local geospatial match.
type POIWithDistance struct {
	POI      `bson:",inline"`
	Distance float64 `json:"distance" bson:"distance"`
}

// Result sources.
const (
	SourceLocal   = "local"
	SourcePlaces  = "places"
	SourceOpenMap = "openmap"
)

// POISummary is the shape returned by search endpoints for both local and
// external results. External-only entries carry no ID.
type POISummary struct {
	ID            string   `json:"id,omitempty"`
	ExternalID    string   `json:"external_id,omitempty"`
	Name          string   `json:"name"`
	Category      Category `json:"category"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Distance      float64  `json:"distance"`
	Address       string   `json:"address,omitempty"`
	AverageRating float64  `json:"average_rating"`
	ReviewCount   int      `json:"review_count"`
	Photo         string   `json:"photo,omitempty"`
	Source        string   `json:"source"`
	Imported      bool     `json:"imported"`
}

func SummaryFromPOI(p *POI, distance float64) POISummary {
	c := p.Coordinates()
	s := POISummary{
		ID:            p.ID.Hex(),
		ExternalID:    p.ExternalID,
		Name:          p.Name,
		Category:      p.Category,
		Lat:           c.Lat,
		Lon:           c.Lon,
		Distance:      distance,
		Address:       p.Address,
		AverageRating: p.Stats.AverageRating,
		ReviewCount:   p.Stats.ReviewCount,
		Source:        SourceLocal,
		Imported:      p.Provenance == ProvenanceImported,
	}
	if p.Metadata != nil && len(p.Metadata.PhotoReferences) > 0 {
		s.Photo = p.Metadata.PhotoReferences[0]
	}
	return s
}

// NearQuery is a radius lookup against the local store.
type NearQuery struct {
	Center     Coordinates
	Radius     float64
	Categories []Category
	ViewerID   string
	Limit      int
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat < b.MaxLat && c.Lon >= b.MinLon && c.Lon < b.MaxLon
}
