package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"snapybara-server/cache"
	"snapybara-server/utils/errors"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type SystemHandler struct {
	cache   *cache.Manager
	checks  map[string]HealthCheck
	logger  *zap.Logger
	started time.Time
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Uptime string            `json:"uptime"`
}

func NewSystemHandler(manager *cache.Manager, checks map[string]HealthCheck, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{
		cache:   manager,
		checks:  checks,
		logger:  logger.Named("system"),
		started: time.Now(),
	}
}

// Health answers 503 when any dependency check fails.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	res := HealthResponse{Status: "ok", Checks: map[string]string{}, Uptime: time.Since(h.started).Round(time.Second).String()}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			res.Checks[name] = "down"
			res.Status = "degraded"
			continue
		}
		res.Checks[name] = "up"
	}

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (h *SystemHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// ResetCache drops every cached entry.
func (h *SystemHandler) ResetCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Reset(r.Context()); err != nil {
		fail(w, errors.Wrap(err, errors.ErrUnavailable.Code, "Cache reset incomplete", errors.ErrUnavailable.Status))
		return
	}
	h.logger.Info("cache reset")
	w.WriteHeader(http.StatusNoContent)
}
