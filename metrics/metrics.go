// Package metrics exports cache activity as prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goforj/odm/cache"
)

// CacheObserver is a cache.Observer counting operations, hits and errors
// and timing each call.
type CacheObserver struct {
	Ops      *prometheus.CounterVec
	Hits     *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

var _ cache.Observer = (*CacheObserver)(nil)

// NewCacheObserver registers the cache metrics with reg. A nil reg uses the
// default registerer.
func NewCacheObserver(reg prometheus.Registerer) *CacheObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := []string{"driver", "op"}
	return &CacheObserver{
		Ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "odm_cache_operations_total",
			Help: "Cache operations by driver and operation",
		}, labels),
		Hits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "odm_cache_hits_total",
			Help: "Cache operations that found their key",
		}, labels),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "odm_cache_errors_total",
			Help: "Cache operations that failed",
		}, labels),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odm_cache_operation_duration_seconds",
			Help:    "Duration of cache operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, labels),
	}
}

// OnCacheOp implements cache.Observer.
func (o *CacheObserver) OnCacheOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver cache.Driver) {
	d := string(driver)
	o.Ops.WithLabelValues(d, op).Inc()
	if hit {
		o.Hits.WithLabelValues(d, op).Inc()
	}
	if err != nil {
		o.Errors.WithLabelValues(d, op).Inc()
	}
	o.Duration.WithLabelValues(d, op).Observe(dur.Seconds())
}
