// Package places talks to the external place providers: a Places API
// compatible service and an Overpass open map data endpoint.
package places

import "snapybara-server/models"

// Place is a provider result in a provider-neutral shape.
type Place struct {
	PlaceID     string                `json:"place_id"`
	Name        string                `json:"name"`
	Lat         float64               `json:"lat"`
	Lon         float64               `json:"lon"`
	Category    models.Category       `json:"category"`
	Types       []string              `json:"types,omitempty"`
	Rating      float64               `json:"rating,omitempty"`
	RatingCount int                   `json:"rating_count,omitempty"`
	Address     string                `json:"address,omitempty"`
	Source      string                `json:"source"`
	Metadata    *models.PlaceMetadata `json:"metadata,omitempty"`
}

func (p Place) Coordinates() models.Coordinates {
	return models.Coordinates{Lat: p.Lat, Lon: p.Lon}
}

// Photo returns the first photo reference, if any.
func (p Place) Photo() string {
	if p.Metadata == nil || len(p.Metadata.PhotoReferences) == 0 {
		return ""
	}
	return p.Metadata.PhotoReferences[0]
}

// Summary converts the place to the search result shape.
func (p Place) Summary(distance float64) models.POISummary {
	return models.POISummary{
		ExternalID:    p.PlaceID,
		Name:          p.Name,
		Category:      p.Category,
		Lat:           p.Lat,
		Lon:           p.Lon,
		Distance:      distance,
		Address:       p.Address,
		AverageRating: p.Rating,
		ReviewCount:   p.RatingCount,
		Photo:         p.Photo(),
		Source:        p.Source,
	}
}

// Prediction is one autocomplete suggestion.
type Prediction struct {
	PlaceID       string   `json:"place_id"`
	Description   string   `json:"description"`
	MainText      string   `json:"main_text,omitempty"`
	SecondaryText string   `json:"secondary_text,omitempty"`
	Types         []string `json:"types,omitempty"`
}

type AutocompleteResult struct {
	Predictions []Prediction `json:"predictions"`
	Status      string       `json:"status"`
}

const (
	StatusOK            = "OK"
	StatusZeroResults   = "ZERO_RESULTS"
	StatusAPIKeyMissing = "API_KEY_MISSING"
)

// Wire shapes of the legacy Places JSON API.

type apiLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type apiPhoto struct {
	PhotoReference string `json:"photo_reference"`
}

type apiPlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Geometry struct {
		Location apiLocation `json:"location"`
	} `json:"geometry"`
	Types                []string   `json:"types"`
	Rating               float64    `json:"rating"`
	UserRatingsTotal     int        `json:"user_ratings_total"`
	Vicinity             string     `json:"vicinity"`
	FormattedAddress     string     `json:"formatted_address"`
	FormattedPhoneNumber string     `json:"formatted_phone_number"`
	Website              string     `json:"website"`
	Photos               []apiPhoto `json:"photos"`
	OpeningHours         *struct {
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
}

type apiSearchResponse struct {
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message"`
	Results      []apiPlace `json:"results"`
}

type apiDetailsResponse struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Result       apiPlace `json:"result"`
}

type apiAutocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID              string   `json:"place_id"`
		Description          string   `json:"description"`
		Types                []string `json:"types"`
		StructuredFormatting struct {
			MainText      string `json:"main_text"`
			SecondaryText string `json:"secondary_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

func (p apiPlace) toPlace() Place {
	address := p.FormattedAddress
	if address == "" {
		address = p.Vicinity
	}
	meta := &models.PlaceMetadata{
		Source:              models.SourcePlaces,
		FormattedAddress:    address,
		Phone:               p.FormattedPhoneNumber,
		Website:             p.Website,
		ProviderTypes:       p.Types,
		ProviderRating:      p.Rating,
		ProviderRatingCount: p.UserRatingsTotal,
	}
	for _, ph := range p.Photos {
		if ph.PhotoReference != "" {
			meta.PhotoReferences = append(meta.PhotoReferences, ph.PhotoReference)
		}
	}
	if p.OpeningHours != nil {
		meta.OpeningHours = p.OpeningHours.WeekdayText
	}
	return Place{
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Lat:         p.Geometry.Location.Lat,
		Lon:         p.Geometry.Location.Lng,
		Category:    MapCategory(p.Name, p.Types),
		Types:       p.Types,
		Rating:      p.Rating,
		RatingCount: p.UserRatingsTotal,
		Address:     address,
		Source:      models.SourcePlaces,
		Metadata:    meta,
	}
}
