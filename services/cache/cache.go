// Package cache stores raw upstream response bodies for a bounded time.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired
var ErrCacheMiss = errors.New("cache: key not found")

// BytesCache is the storage behind the upstream response cache
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// HashKey generates the MD5 hex digest of a key, keeping backend keys short
// and free of URL punctuation
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
