// Package cache defines the shared byte store that can sit behind the in-process caches.
package cache

import (
	"context"
	"time"
)

// Shared is an optional second-level store (Redis in production). A miss is
// (nil, false, nil); errors are reported but callers treat them as misses.
type Shared interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}
