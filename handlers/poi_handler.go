package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"snapybara-server/auth"
	"snapybara-server/models"
	"snapybara-server/services"
)

type POIHandler struct {
	points *services.PointService
}

type StatusRequest struct {
	Status models.PointStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

type ImportRequest struct {
	PlaceID string `json:"place_id" validate:"required"`
}

type ImportResponse struct {
	Point   *models.POI `json:"point"`
	Created bool        `json:"created"`
}

func NewPOIHandler(points *services.PointService) *POIHandler {
	return &POIHandler{points: points}
}

func (h *POIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.PointInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	p, err := h.points.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *POIHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.points.Get(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *POIHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.PointUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	p, err := h.points.Update(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *POIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.points.Deactivate(r.Context(), mux.Vars(r)["id"], id.UserID, id.IsAdmin()); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *POIHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, limit, err := queryPage(r)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := h.points.ListMine(r.Context(), auth.UserID(r.Context()), page, limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetStatus handles moderation decisions.
func (h *POIHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var in StatusRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	p, err := h.points.SetStatus(r.Context(), mux.Vars(r)["id"], in.Status)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Import stores a provider place as a local point. Re-importing answers 200
// with the existing point.
func (h *POIHandler) Import(w http.ResponseWriter, r *http.Request) {
	var in ImportRequest
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	p, created, err := h.points.ImportExternal(r.Context(), in.PlaceID)
	if err != nil {
		fail(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ImportResponse{Point: p, Created: created})
}
