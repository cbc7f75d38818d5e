package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"snapybara-server/auth"
	"snapybara-server/models"
	"snapybara-server/services"
)

type CollectionHandler struct {
	collections *services.CollectionService
}

type CollectionsResponse struct {
	Data  []models.Collection `json:"data"`
	Count int                 `json:"count"`
}

func NewCollectionHandler(collections *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

func (h *CollectionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.collections.ListMine(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Data: items, Count: len(items)})
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	c, err := h.collections.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.collections.Get(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.CollectionUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	c, err := h.collections.Update(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.collections.Delete(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context())); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionHandler) AddPoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, err := h.collections.AddPoint(r.Context(), vars["id"], auth.UserID(r.Context()), vars["pointId"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) RemovePoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, err := h.collections.RemovePoint(r.Context(), vars["id"], auth.UserID(r.Context()), vars["pointId"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	res, err := h.collections.ToggleFavorite(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["pointId"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
