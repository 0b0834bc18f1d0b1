// Package cache provides the TTL cache used for backend reads.
package cache

import "time"

// Cache is a TTL key/value cache.
type Cache interface {
	// Get returns (value, true) on a hit and (nil, false) on a miss or expiry.
	Get(key string) (any, bool)

	// Set stores a value with a TTL. It may be dropped under contention.
	Set(key string, value any, ttl time.Duration) bool

	Delete(key string)

	// Wait blocks until buffered writes are visible to Get.
	Wait()

	Clear()
	Close()
}
