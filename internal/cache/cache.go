package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Cache stores materialized list views for a fixed time
type Cache interface {
	// Get decodes the value under key into dst, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dst any) error
	// Set stores value under key until the TTL passes.
	Set(ctx context.Context, key string, value any) error
	// Generation returns the current catalog generation.
	Generation(ctx context.Context) (int64, error)
	// Bump advances the catalog generation so existing keys stop matching.
	Bump(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "storefront:"

// Key builds the cache key for a kind of view at a catalog generation.
// The same canonical parameters always give the same key.
func Key(generation int64, kind, canonical string) string {
	return keyPrefix + "g" + strconv.FormatInt(generation, 10) + ":" + kind + ":" +
		strconv.FormatUint(xxhash.Sum64String(canonical), 16)
}
