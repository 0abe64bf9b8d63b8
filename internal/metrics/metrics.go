// Package metrics exposes Prometheus collectors for stores and the hub.
//
// Every Collector owns its registry, so tests and multiple hubs in one
// process do not collide on the default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wedplan"

var syncStates = []string{"uninitialized", "local-only", "remote-active"}

// Collector records store and hub activity.
type Collector struct {
	registry *prometheus.Registry

	mutations      *prometheus.CounterVec
	snapshots      *prometheus.CounterVec
	collectionSize *prometheus.GaugeVec
	syncState      *prometheus.GaugeVec

	hubConnections prometheus.Gauge
	hubRequests    *prometheus.CounterVec
	hubDuration    *prometheus.HistogramVec
	hubBroadcasts  *prometheus.CounterVec
}

// New creates a Collector with a fresh registry. Go runtime and process
// collectors are registered alongside.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Store mutations by kind, operation and outcome",
		}, []string{"kind", "op", "outcome"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "remote_snapshots_total",
			Help:      "Remote snapshots accepted by kind",
		}, []string{"kind"}),
		collectionSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "remote_snapshot_size",
			Help:      "Entities in the most recent remote snapshot",
		}, []string{"kind"}),
		syncState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sync_state",
			Help:      "1 for the current sync state of each kind",
		}, []string{"kind", "state"}),
		hubConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connections",
			Help:      "Open websocket connections",
		}),
		hubRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "requests_total",
			Help:      "Hub requests by operation and status",
		}, []string{"op", "status"}),
		hubDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "request_duration_seconds",
			Help:      "Time to handle a hub request",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		hubBroadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "snapshots_sent_total",
			Help:      "Snapshots pushed to listeners by collection",
		}, []string{"collection"}),
	}
}

// ObserveMutation implements syncstore.Metrics.
func (c *Collector) ObserveMutation(kind, op, outcome string) {
	c.mutations.WithLabelValues(kind, op, outcome).Inc()
}

// ObserveSnapshot implements syncstore.Metrics.
func (c *Collector) ObserveSnapshot(kind string, size int) {
	c.snapshots.WithLabelValues(kind).Inc()
	c.collectionSize.WithLabelValues(kind).Set(float64(size))
}

// ObserveState implements syncstore.Metrics.
func (c *Collector) ObserveState(kind, state string) {
	for _, s := range syncStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.syncState.WithLabelValues(kind, s).Set(v)
	}
}

// ConnectionOpened and ConnectionClosed track hub websocket clients.
func (c *Collector) ConnectionOpened() { c.hubConnections.Inc() }

// ConnectionClosed decrements the open connection gauge.
func (c *Collector) ConnectionClosed() { c.hubConnections.Dec() }

// ObserveRequest records one handled hub request.
func (c *Collector) ObserveRequest(op, status string, elapsed time.Duration) {
	c.hubRequests.WithLabelValues(op, status).Inc()
	c.hubDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveBroadcast counts snapshots sent to listeners of collection.
func (c *Collector) ObserveBroadcast(collection string, listeners int) {
	c.hubBroadcasts.WithLabelValues(collection).Add(float64(listeners))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
