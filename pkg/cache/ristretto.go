package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a Cache backed by Ristretto. Every item costs 1, so
// MaxCost is the item capacity.
type RistrettoCache struct {
	name   string
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for a Ristretto cache.
type RistrettoConfig struct {
	Name        string // Metrics label, e.g. "markets" or "orderbooks"
	MaxItems    int64
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 1000
	}

	buffer := cfg.BufferItems
	if buffer <= 0 {
		buffer = 64
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10, // Ristretto recommends 10x the item count
		MaxCost:            maxItems,
		BufferItems:        buffer,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &RistrettoCache{
		name:   name,
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get implements Cache.
func (r *RistrettoCache) Get(key string) (any, bool) {
	value, found := r.cache.Get(key)
	if found {
		HitsTotal.WithLabelValues(r.name).Inc()
	} else {
		MissesTotal.WithLabelValues(r.name).Inc()
	}
	return value, found
}

// Set implements Cache.
func (r *RistrettoCache) Set(key string, value any, ttl time.Duration) bool {
	ok := r.cache.SetWithTTL(key, value, 1, ttl)
	if ok {
		SetsTotal.WithLabelValues(r.name).Inc()
	} else {
		r.logger.Debug("cache-set-dropped",
			zap.String("cache", r.name),
			zap.String("key", key))
	}
	return ok
}

// Delete implements Cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	DeletesTotal.WithLabelValues(r.name).Inc()
}

// Wait implements Cache.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}

// Clear implements Cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared", zap.String("cache", r.name))
}

// Close implements Cache.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// HitRatio returns Ristretto's own hit ratio since creation.
func (r *RistrettoCache) HitRatio() float64 {
	return r.cache.Metrics.Ratio()
}
