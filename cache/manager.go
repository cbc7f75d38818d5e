package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"snapybara-server/metrics"
)

// Stats reports lookups since startup.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// Manager layers JSON encoding, TTL tiers, stale copies, cell indexing and
// hit/miss accounting over a Store.
type Manager struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

func NewManager(store Store, logger *zap.Logger, collector *metrics.Collector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		logger:  logger.Named("cache"),
		metrics: collector,
	}
}

func (m *Manager) Store() Store {
	return m.store
}

// GetJSON decodes the fresh entry at key into dst and counts a hit or miss.
func (m *Manager) GetJSON(ctx context.Context, key string, dst any) bool {
	if m.decode(ctx, key, dst) {
		m.hits.Add(1)
		m.metrics.CacheHit()
		return true
	}
	m.misses.Add(1)
	m.metrics.CacheMiss()
	return false
}

// GetStaleJSON reads the stale copy kept for upstream failures.
func (m *Manager) GetStaleJSON(ctx context.Context, key string, dst any) bool {
	if !m.decode(ctx, staleKey(key), dst) {
		return false
	}
	m.metrics.StaleServed()
	m.logger.Warn("serving stale cache entry", zap.String("key", key))
	return true
}

func (m *Manager) decode(ctx context.Context, key string, dst any) bool {
	raw, ok := m.store.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		m.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		m.store.Del(ctx, key)
		return false
	}
	return true
}

// Put writes value under key with the tier's TTL and no stale copy. Results
// computed from the local store use it: they must never outlive an
// invalidation.
func (m *Manager) Put(ctx context.Context, key string, value any, tier Tier) {
	if raw, ok := m.encode(key, value); ok {
		m.store.Set(ctx, key, raw, tier.TTL())
	}
}

// SetJSON writes value under key with the tier's TTL, plus a stale copy
// that outlives it by StaleRetention.
func (m *Manager) SetJSON(ctx context.Context, key string, value any, tier Tier) {
	raw, ok := m.encode(key, value)
	if !ok {
		return
	}
	m.store.Set(ctx, key, raw, tier.TTL())
	m.store.Set(ctx, staleKey(key), raw, tier.TTL()+StaleRetention)
}

func (m *Manager) encode(key string, value any) ([]byte, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return raw, true
}

// Delete removes keys together with their stale copies.
func (m *Manager) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	all := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		all = append(all, k, staleKey(k))
	}
	m.store.Del(ctx, all...)
}

func (m *Manager) Reset(ctx context.Context) error {
	return m.store.Reset(ctx)
}

// Index records key as served from each cell so that a mutation inside any
// of them can find and delete it.
func (m *Manager) Index(ctx context.Context, cells []Cell, key string) {
	for _, c := range cells {
		m.store.AddToIndex(ctx, c.IndexKey(), key, SearchTTL)
	}
}

func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// GetOrFetch returns the cached value at key or calls fetch and writes the
// result through with the tier's TTL. When fetch fails and a stale copy
// exists, the stale copy is returned instead of the error.
func GetOrFetch[T any](ctx context.Context, m *Manager, key string, tier Tier, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	if m.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var stale T
		if m.GetStaleJSON(ctx, key, &stale) {
			return stale, nil
		}
		var zero T
		return zero, err
	}

	m.SetJSON(ctx, key, v, tier)
	return v, nil
}
