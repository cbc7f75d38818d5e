package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"snapybara-server/models"
	"snapybara-server/places"
	"snapybara-server/utils/errors"
)

// PlaceLookup is the provider surface exposed over HTTP.
type PlaceLookup interface {
	TextSearch(ctx context.Context, query string, loc *models.Coordinates, radius int) []places.Place
	Autocomplete(ctx context.Context, input string, loc *models.Coordinates, radius int) places.AutocompleteResult
	GetDetails(ctx context.Context, placeID string) *places.Place
	PhotoURL(ctx context.Context, ref string, maxWidth int) string
}

type PlaceHandler struct {
	places PlaceLookup
}

type PlacesResponse struct {
	Data  []places.Place `json:"data"`
	Count int            `json:"count"`
}

func NewPlaceHandler(lookup PlaceLookup) *PlaceHandler {
	return &PlaceHandler{places: lookup}
}

func (h *PlaceHandler) TextSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		fail(w, errors.InvalidInput("query is required"))
		return
	}
	loc, err := queryLocation(r)
	if err != nil {
		fail(w, err)
		return
	}
	radius, err := queryInt(r, "radius", defaultSearchRadius)
	if err != nil {
		fail(w, err)
		return
	}
	found := h.places.TextSearch(r.Context(), query, loc, radius)
	if found == nil {
		found = []places.Place{}
	}
	writeJSON(w, http.StatusOK, PlacesResponse{Data: found, Count: len(found)})
}

// Autocomplete always answers 200; the provider status travels in the body.
func (h *PlaceHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	loc, err := queryLocation(r)
	if err != nil {
		fail(w, err)
		return
	}
	radius, err := queryInt(r, "radius", defaultSearchRadius)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.places.Autocomplete(r.Context(), r.URL.Query().Get("input"), loc, radius))
}

func (h *PlaceHandler) Details(w http.ResponseWriter, r *http.Request) {
	place := h.places.GetDetails(r.Context(), mux.Vars(r)["placeId"])
	if place == nil {
		fail(w, errors.WithDetails(errors.ErrNotFound, "place not found"))
		return
	}
	writeJSON(w, http.StatusOK, place)
}

// Photo redirects to the provider image for a photo reference.
func (h *PlaceHandler) Photo(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r, "maxwidth", 400)
	if err != nil {
		fail(w, err)
		return
	}
	target := h.places.PhotoURL(r.Context(), mux.Vars(r)["ref"], width)
	if target == "" {
		fail(w, errors.WithDetails(errors.ErrNotFound, "photo not available"))
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
