package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"snapybara-server/auth"
	"snapybara-server/services"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, err := queryPage(r)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := h.reviews.ListForPoint(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), page, limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	review, err := h.reviews.Create(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		fail(w, err)
		return
	}
	review, err := h.reviews.Update(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.reviews.Delete(r.Context(), mux.Vars(r)["id"], id.UserID, id.IsAdmin()); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) ToggleHelpful(w http.ResponseWriter, r *http.Request) {
	res, err := h.reviews.ToggleHelpful(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
