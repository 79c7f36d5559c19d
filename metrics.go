package decryptiondb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zama-ai/decryptiondb/waitcache"
)

const (
	metricsNamespace = "decryptiondb"
)

// serviceMetrics collects request, store, and wait-cache counters for one
// process. Call newServiceMetrics once per process; it registers against
// the given prometheus registry, mirroring caddy's metrics.go init pattern.
type serviceMetrics struct {
	requestsTotal     *prometheus.CounterVec
	storeOpDuration   *prometheus.HistogramVec
	waitcacheWaiters  prometheus.Gauge
	waitcacheTimeouts prometheus.Counter
	waitcacheEvicted  *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	factory := promauto.With(reg)
	return &serviceMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Counter of requests handled, by method, path and status code.",
		}, []string{"method", "path", "code"}),
		storeOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "store_op_duration_seconds",
			Help:      "Duration of blocking durable-store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		waitcacheWaiters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "waitcache",
			Name:      "waiters",
			Help:      "Current number of GET requests suspended on the wait cache.",
		}),
		waitcacheTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "waitcache",
			Name:      "timeouts_total",
			Help:      "Number of wait-cache waits that expired without a matching PUT.",
		}),
		waitcacheEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "waitcache",
			Name:      "cells_evicted_total",
			Help:      "Number of wait-cache cells removed by the TTL sweep, by whether they held a value.",
		}, []string{"filled"}),
	}
}

// waitCacheMetrics adapts serviceMetrics to waitcache.Metrics.
type waitCacheMetrics struct {
	m *serviceMetrics
}

var _ waitcache.Metrics = waitCacheMetrics{}

func (w waitCacheMetrics) WaiterAttached() {
	w.m.waitcacheWaiters.Inc()
}

func (w waitCacheMetrics) WaiterReleased(timedOut bool) {
	w.m.waitcacheWaiters.Dec()
	if timedOut {
		w.m.waitcacheTimeouts.Inc()
	}
}

func (w waitCacheMetrics) CellEvicted(hadValue bool) {
	label := "false"
	if hadValue {
		label = "true"
	}
	w.m.waitcacheEvicted.WithLabelValues(label).Inc()
}
