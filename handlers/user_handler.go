package handlers

import (
	"net/http"

	"snapybara-server/auth"
	"snapybara-server/services"
)

type UserHandler struct {
	users *services.UserService
}

type WebhookResponse struct {
	Received bool `json:"received"`
	Handled  bool `json:"handled"`
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// IdentityWebhook applies user lifecycle events from the identity provider.
// Unknown event types are acknowledged so the provider does not retry them.
func (h *UserHandler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	var ev services.IdentityEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		fail(w, err)
		return
	}
	handled, err := h.users.HandleEvent(r.Context(), ev)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Handled: handled})
}
