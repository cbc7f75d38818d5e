package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store backed by go-cache.
type MemoryStore struct {
	items *gocache.Cache
	// serialises read-modify-write on index sets
	mu sync.Mutex
}

func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	b := make([]byte, len(value))
	copy(b, value)
	s.items.Set(key, b, expiration(ttl))
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) {
	for _, k := range keys {
		s.items.Delete(k)
	}
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.items.Flush()
	return nil
}

func (s *MemoryStore) AddToIndex(_ context.Context, indexKey, member string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := map[string]struct{}{}
	if v, ok := s.items.Get(indexKey); ok {
		if existing, ok := v.(map[string]struct{}); ok {
			for m := range existing {
				members[m] = struct{}{}
			}
		}
	}
	members[member] = struct{}{}
	s.items.Set(indexKey, members, expiration(ttl))
}

func (s *MemoryStore) PopIndex(_ context.Context, indexKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(indexKey)
	if !ok {
		return nil
	}
	s.items.Delete(indexKey)

	set, ok := v.(map[string]struct{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Close() error { return nil }

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.DefaultExpiration
	}
	return ttl
}
