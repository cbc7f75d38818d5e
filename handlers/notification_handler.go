package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"snapybara-server/auth"
	"snapybara-server/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

type CountResponse struct {
	Count int64 `json:"count"`
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /notifications?unread=true&page&limit.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, err := queryPage(r)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := h.notifications.List(r.Context(), auth.UserID(r.Context()), queryBool(r, "unread"), page, limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}
