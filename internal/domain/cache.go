package domain

import (
	"context"
	"time"
)

// CacheError is a sentinel cache failure.
type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

// ErrCacheMiss reports an absent or expired key.
const ErrCacheMiss = CacheError("cache: key not found")

// Cache is the optional key/value store shared by the embedding adapters
// (vectors across runs) and the read API (subjects, keywords, stats).
// Callers treat every failure as a miss and fall back to the source.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value; an expiration of 0 never expires.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete ignores missing keys.
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
