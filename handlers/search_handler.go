package handlers

import (
	"net/http"
	"strings"

	"snapybara-server/auth"
	"snapybara-server/models"
	"snapybara-server/services"
)

const (
	defaultSearchRadius = 1000
	defaultSearchLimit  = 20
)

type SearchHandler struct {
	geo *services.GeoService
}

type AreaResponse struct {
	Data  []models.POISummary `json:"data"`
	Count int                 `json:"count"`
	Lat   float64             `json:"lat"`
	Lon   float64             `json:"lon"`
}

func NewSearchHandler(geo *services.GeoService) *SearchHandler {
	return &SearchHandler{geo: geo}
}

func parseCategories(raw string) []models.Category {
	var out []models.Category
	for _, c := range strings.Split(raw, ",") {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, models.Category(c))
		}
	}
	return out
}

// Search handles GET /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		fail(w, err)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		fail(w, err)
		return
	}
	radius, err := queryInt(r, "radius", defaultSearchRadius)
	if err != nil {
		fail(w, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		fail(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		fail(w, err)
		return
	}

	res, err := h.geo.Search(r.Context(), services.SearchParams{
		Lat:        lat,
		Lon:        lon,
		Radius:     radius,
		Categories: parseCategories(r.URL.Query().Get("categories")),
		Page:       page,
		Limit:      limit,
		Refresh:    queryBool(r, "refresh"),
		ViewerID:   auth.UserID(r.Context()),
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AreaPoints handles GET /points/area.
func (h *SearchHandler) AreaPoints(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		fail(w, err)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		fail(w, err)
		return
	}
	items, err := h.geo.AreaPoints(r.Context(), lat, lon)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AreaResponse{Data: items, Count: len(items), Lat: lat, Lon: lon})
}
