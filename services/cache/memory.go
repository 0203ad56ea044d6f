package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

// MemoryCache is an in-process BytesCache with per-key expiry and a size cap
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache holding at most maxSize keys
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		data:    make(map[string]memoryItem),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (mc *MemoryCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if mc.now().After(item.expireAt) {
		mc.mu.Lock()
		if current, ok := mc.data[key]; ok && current.expireAt.Equal(item.expireAt) {
			delete(mc.data, key)
		}
		mc.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

func (mc *MemoryCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	if _, exists := mc.data[key]; !exists && len(mc.data) >= mc.maxSize {
		mc.evict(now)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	mc.data[key] = memoryItem{value: stored, expireAt: now.Add(ttl)}
	return nil
}

// evict drops expired entries, or the entry closest to expiry when none are
func (mc *MemoryCache) evict(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, item := range mc.data {
		if now.After(item.expireAt) {
			delete(mc.data, key)
			continue
		}
		if oldestKey == "" || item.expireAt.Before(oldestAt) {
			oldestKey, oldestAt = key, item.expireAt
		}
	}
	if len(mc.data) >= mc.maxSize && oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

// Len returns the number of stored keys, expired or not
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.data)
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	mc.data = make(map[string]memoryItem)
	mc.mu.Unlock()
	return nil
}
