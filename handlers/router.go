package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"snapybara-server/auth"
	"snapybara-server/metrics"
	"snapybara-server/middleware"
)

// Handlers groups every HTTP handler served by the API.
type Handlers struct {
	Search        *SearchHandler
	POIs          *POIHandler
	Reviews       *ReviewHandler
	Places        *PlaceHandler
	Collections   *CollectionHandler
	Notifications *NotificationHandler
	Users         *UserHandler
	System        *SystemHandler
}

type RouterConfig struct {
	Verifier       auth.Verifier
	WebhookSecret  string
	AllowedOrigins []string
	Metrics        *metrics.Collector
	Logger         *zap.Logger
}

// NewRouter registers every route with its auth requirement. Every route
// also accepts OPTIONS so the CORS middleware can answer preflights.
func NewRouter(h Handlers, cfg RouterConfig) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	required := middleware.RequireAuth(cfg.Verifier)
	optional := middleware.OptionalAuth(cfg.Verifier)
	public := func(f http.HandlerFunc) http.Handler { return f }
	authed := func(f http.HandlerFunc) http.Handler { return required(f) }
	maybe := func(f http.HandlerFunc) http.Handler { return optional(f) }
	admin := func(f http.HandlerFunc) http.Handler { return required(middleware.RequireAdmin(f)) }

	handle := func(path string, handler http.Handler, methods ...string) {
		r.Handle(path, handler).Methods(append(methods, http.MethodOptions)...)
	}

	// System
	handle("/health", public(h.System.Health), http.MethodGet)
	if cfg.Metrics != nil {
		handle("/metrics", cfg.Metrics.Handler(), http.MethodGet)
	}
	handle("/cache/stats", public(h.System.CacheStats), http.MethodGet)
	handle("/cache", admin(h.System.ResetCache), http.MethodDelete)

	// Search
	handle("/search", maybe(h.Search.Search), http.MethodGet)
	handle("/points/area", public(h.Search.AreaPoints), http.MethodGet)

	// Points; fixed paths before /points/{id}
	handle("/points", authed(h.POIs.Create), http.MethodPost)
	handle("/points/mine", authed(h.POIs.ListMine), http.MethodGet)
	handle("/points/import", authed(h.POIs.Import), http.MethodPost)
	handle("/points/{id}", maybe(h.POIs.Get), http.MethodGet)
	handle("/points/{id}", authed(h.POIs.Update), http.MethodPut)
	handle("/points/{id}", authed(h.POIs.Delete), http.MethodDelete)
	handle("/points/{id}/status", admin(h.POIs.SetStatus), http.MethodPut)

	// Reviews
	handle("/points/{id}/reviews", maybe(h.Reviews.List), http.MethodGet)
	handle("/points/{id}/reviews", authed(h.Reviews.Create), http.MethodPost)
	handle("/reviews/{id}", authed(h.Reviews.Update), http.MethodPut)
	handle("/reviews/{id}", authed(h.Reviews.Delete), http.MethodDelete)
	handle("/reviews/{id}/helpful", authed(h.Reviews.ToggleHelpful), http.MethodPost)

	// Provider places
	handle("/places/text", public(h.Places.TextSearch), http.MethodGet)
	handle("/places/autocomplete", public(h.Places.Autocomplete), http.MethodGet)
	handle("/places/photo/{ref}", public(h.Places.Photo), http.MethodGet)
	handle("/places/{placeId}", public(h.Places.Details), http.MethodGet)

	// Collections
	handle("/collections", authed(h.Collections.ListMine), http.MethodGet)
	handle("/collections", authed(h.Collections.Create), http.MethodPost)
	handle("/collections/{id}", maybe(h.Collections.Get), http.MethodGet)
	handle("/collections/{id}", authed(h.Collections.Update), http.MethodPut)
	handle("/collections/{id}", authed(h.Collections.Delete), http.MethodDelete)
	handle("/collections/{id}/points/{pointId}", authed(h.Collections.AddPoint), http.MethodPost)
	handle("/collections/{id}/points/{pointId}", authed(h.Collections.RemovePoint), http.MethodDelete)
	handle("/favorites/{pointId}", authed(h.Collections.ToggleFavorite), http.MethodPost)

	// Notifications
	handle("/notifications", authed(h.Notifications.List), http.MethodGet)
	handle("/notifications/unread-count", authed(h.Notifications.UnreadCount), http.MethodGet)
	handle("/notifications/read-all", authed(h.Notifications.MarkAllRead), http.MethodPost)
	handle("/notifications/{id}/read", authed(h.Notifications.MarkRead), http.MethodPost)

	// Users
	handle("/users/me", authed(h.Users.Me), http.MethodGet)
	handle("/webhooks/identity", middleware.WebhookSecret(cfg.WebhookSecret)(http.HandlerFunc(h.Users.IdentityWebhook)), http.MethodPost)

	return r
}
