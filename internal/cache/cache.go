package cache

import (
	"strconv"
	"time"

	"github.com/onnwee/graphvis3d/internal/metrics"
)

// Cache defines the interface for caching serialized data with TTL.
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns the value and true if found and not expired, otherwise nil and false.
	Get(key string) ([]byte, bool)

	// Set stores a value in the cache with the given key and TTL.
	// TTL of 0 means use the default cache TTL.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64 // Total cache hits
	Misses    uint64 // Total cache misses
	KeysAdded uint64 // Total keys added
	Evictions uint64 // Total evictions
	Size      int64  // Approximate size in bytes
	Items     int64  // Current number of items
}

// FrameKey names the encoding of one frame. A (run, tick) pair identifies a
// frame for the lifetime of the process, so entries never go stale; the TTL
// only bounds memory.
func FrameKey(run uint64, tick int, encoding string) string {
	b := make([]byte, 0, 32)
	b = append(b, "frame:"...)
	b = strconv.AppendUint(b, run, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(tick), 10)
	if encoding != "" {
		b = append(b, ':')
		b = append(b, encoding...)
	}
	return string(b)
}

// Fetch returns the cached value for key, or encodes, stores and returns a
// fresh one. The boolean reports a cache hit.
func Fetch(c Cache, key string, encode func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		metrics.FrameCacheHits.Inc()
		return data, true, nil
	}
	metrics.FrameCacheMisses.Inc()
	data, err := encode()
	if err != nil {
		return nil, false, err
	}
	c.Set(key, data, 0)
	return data, false, nil
}
