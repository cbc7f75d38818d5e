// Package cache holds the search cache: TTL stores, key derivation over
// geographic area cells, a typed manager with stale fallback, and the
// invalidation trigger run on point mutations.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store. Implementations never return backend
// errors from lookups or writes: a failing backend behaves as an
// always-miss cache and logs. Only Reset reports failure, since a partial
// flush must not look like a complete one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	Reset(ctx context.Context) error

	// AddToIndex records member in the set stored at indexKey and refreshes
	// the set's TTL.
	AddToIndex(ctx context.Context, indexKey, member string, ttl time.Duration)
	// PopIndex returns every member of the set at indexKey and removes it.
	PopIndex(ctx context.Context, indexKey string) []string

	Close() error
}
