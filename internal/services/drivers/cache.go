package drivers

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/ternarybob/vantage/internal/models"
)

// CacheMetrics counts how callers were served by the cache.
type CacheMetrics struct {
	Hits   *prometheus.CounterVec
	Misses *prometheus.CounterVec
	Shared *prometheus.CounterVec
}

// NewCacheMetrics creates the counters and registers them with reg when it is non-nil
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vantage",
			Subsystem: "driver_cache",
			Name:      "hits_total",
			Help:      "Number of resolutions served from an already resolved executable.",
		}, []string{"executable"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vantage",
			Subsystem: "driver_cache",
			Name:      "misses_total",
			Help:      "Number of resolutions that ran the strategy chain.",
		}, []string{"executable"}),
		Shared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vantage",
			Subsystem: "driver_cache",
			Name:      "shared_total",
			Help:      "Number of callers served by a resolution flight shared with other callers.",
		}, []string{"executable"}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Shared)
	}
	return m
}

// Cache memoises resolved executables for the lifetime of the process.
// At most one resolution per name is in flight at any time; concurrent callers
// for the same name wait for that flight instead of starting their own.
// Successful results are never invalidated. Failures are not memoised, so the
// next caller after a failed flight runs the chain again.
type Cache struct {
	mu       sync.Mutex
	resolved map[string]models.Executable
	group    singleflight.Group
	metrics  *CacheMetrics
}

// NewCache creates an empty cache. metrics may be nil.
func NewCache(metrics *CacheMetrics) *Cache {
	if metrics == nil {
		metrics = NewCacheMetrics(nil)
	}
	return &Cache{
		resolved: make(map[string]models.Executable),
		metrics:  metrics,
	}
}

// Lookup returns a completed resolution without waiting on in-flight ones
func (c *Cache) Lookup(name string) (models.Executable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exe, ok := c.resolved[name]
	return exe, ok
}

// Resolve returns the memoised executable for name, joins an in-flight
// resolution, or runs fn as the single leader. fn runs detached from the
// caller's cancellation so that one caller giving up does not fail the others;
// each caller may still stop waiting when its own ctx is done.
func (c *Cache) Resolve(ctx context.Context, name string, fn func(ctx context.Context) (models.Executable, error)) (models.Executable, error) {
	if exe, ok := c.Lookup(name); ok {
		c.metrics.Hits.WithLabelValues(name).Inc()
		return exe, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (interface{}, error) {
		// A flight for this name may have completed between Lookup and DoChan
		if exe, ok := c.Lookup(name); ok {
			return exe, nil
		}

		c.metrics.Misses.WithLabelValues(name).Inc()
		exe, err := fn(flightCtx)
		if err != nil {
			return models.Executable{}, err
		}

		c.mu.Lock()
		c.resolved[name] = exe
		c.mu.Unlock()
		return exe, nil
	})

	select {
	case <-ctx.Done():
		return models.Executable{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.Shared.WithLabelValues(name).Inc()
		}
		if res.Err != nil {
			return models.Executable{}, res.Err
		}
		return res.Val.(models.Executable), nil
	}
}

// Len returns the number of resolved executables
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resolved)
}
