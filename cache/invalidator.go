package cache

import (
	"context"

	"go.uber.org/zap"

	"snapybara-server/metrics"
	"snapybara-server/models"
)

// Invalidator deletes cached results a point mutation may have made stale.
// It is best-effort: a search racing the mutation can still repopulate a
// stale entry for at most one TTL.
type Invalidator struct {
	manager *Manager
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewInvalidator(manager *Manager, logger *zap.Logger, collector *metrics.Collector) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		manager: manager,
		logger:  logger.Named("invalidator"),
		metrics: collector,
	}
}

// InvalidateForPoint clears every cell containing current and, when it
// differs, previous. It returns how many keys were targeted, cell entries
// included whether or not they existed.
func (i *Invalidator) InvalidateForPoint(ctx context.Context, current models.Coordinates, previous *models.Coordinates) int {
	cells := CellsForPoint(current.Lat, current.Lon)
	if previous != nil && *previous != current {
		cells = append(cells, CellsForPoint(previous.Lat, previous.Lon)...)
	}

	seen := make(map[Cell]struct{}, len(cells))
	seenKeys := map[string]struct{}{}
	var keys []string
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}

		keys = append(keys, c.Key())
		for _, k := range i.manager.store.PopIndex(ctx, c.IndexKey()) {
			if _, ok := seenKeys[k]; ok {
				continue
			}
			seenKeys[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	i.manager.Delete(ctx, keys...)
	i.metrics.Invalidated(len(keys))
	i.logger.Debug("invalidated point area",
		zap.Float64("lat", current.Lat),
		zap.Float64("lon", current.Lon),
		zap.Int("cells", len(seen)),
		zap.Int("keys", len(keys)),
	)
	return len(keys)
}
