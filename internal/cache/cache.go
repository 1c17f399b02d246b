// Package cache provides the TTL key/value store used to memoize provider
// responses. Backends are swappable behind the Store contract; correctness
// never depends on the cache, so callers treat every store error as a miss.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store is the contract every cache backend implements. All methods must be
// safe for concurrent use. A Get past an entry's TTL behaves exactly like an
// absent key and removes the entry lazily.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	SizeEstimate(ctx context.Context) (int64, error)
	Close() error
}

// Key builds a stable cache key from a kind prefix and the identifying
// parts. Parts are hashed so arbitrary titles never leak into backend key
// syntax; the kind prefix keeps keys greppable in the sqlite backend.
func Key(kind string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%016x", kind, h.Sum64())
}
