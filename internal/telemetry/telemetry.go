// Package telemetry exposes process counters for the server engine over
// an HTTP /metrics endpoint, in the style of the VictoriaMetrics gauges
// Atlas's pkg/metricsx registers. This is ambient instrumentation, not a
// protocol concern: the wire format and dispatcher never import it.
package telemetry

import (
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics holds the counters/gauges a running server publishes.
type Metrics struct {
	set *metrics.Set

	peersConnected  atomic.Int64
	framesRead      *metrics.Counter
	framesDropped   *metrics.Counter
	clientsRejected *metrics.Counter
}

// New registers a fresh counter set. Using a private set (rather than the
// global default) keeps multiple servers in the same test process from
// colliding on metric names.
func New() *Metrics {
	set := metrics.NewSet()
	m := &Metrics{set: set}
	m.framesRead = set.NewCounter("labsync_frames_read_total")
	m.framesDropped = set.NewCounter("labsync_frames_dropped_total")
	m.clientsRejected = set.NewCounter("labsync_clients_rejected_total")
	set.GetOrCreateGauge("labsync_peers_connected", func() float64 {
		return float64(m.peersConnected.Load())
	})
	return m
}

// SetPeersConnected reports the current registry size. The gauge callback
// is registered once, in New; GetOrCreateGauge keeps whichever callback
// first registered a given metric name, so a later call here only needs
// to update the value that callback reads.
func (m *Metrics) SetPeersConnected(n int) {
	m.peersConnected.Store(int64(n))
}

// IncFramesRead counts one successfully read command frame.
func (m *Metrics) IncFramesRead() { m.framesRead.Inc() }

// IncFramesDropped counts one frame abandoned due to a protocol or I/O error.
func (m *Metrics) IncFramesDropped() { m.framesDropped.Inc() }

// IncClientsRejected counts one connection closed for an unrecognized role.
func (m *Metrics) IncClientsRejected() { m.clientsRejected.Inc() }

// Handler returns an http.Handler serving this set in Prometheus text
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.set.WritePrometheus(w)
	})
}

// ListenAndServe starts a small HTTP server exposing /metrics. A blank
// addr disables telemetry entirely.
func ListenAndServe(addr string, m *Metrics) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
