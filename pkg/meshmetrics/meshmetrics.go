// Package meshmetrics exposes the node engine's health as Prometheus
// metrics, the way runZeroInc-sockstats/runZeroInc-conniver's pkg/exporter
// exposes TCP session health: a small set of counters and gauges updated
// directly by the engine rather than scraped from kernel state.
package meshmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the collaborator pkg/meshnode reports drop reasons and route
// table size to. A nil *Metrics is valid; every method is a no-op.
type Metrics struct {
	framesDropped  *prometheus.CounterVec
	framesReceived prometheus.Counter
	framesSent     prometheus.Counter
	routeTableSize prometheus.Gauge
}

// New creates a Metrics instance and registers its collectors with reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshcore_frames_dropped_total",
			Help: "Frames dropped by the node engine, by reason.",
		}, []string{"reason"}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshcore_frames_received_total",
			Help: "Frames successfully parsed off the host.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshcore_frames_sent_total",
			Help: "Frames handed to the host for broadcast.",
		}),
		routeTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshcore_route_table_size",
			Help: "Current number of entries in the routing table.",
		}),
	}
	reg.MustRegister(m.framesDropped, m.framesReceived, m.framesSent, m.routeTableSize)
	return m
}

func (m *Metrics) DroppedFrame(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReceivedFrame() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

func (m *Metrics) SentFrame() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) SetRouteTableSize(n int) {
	if m == nil {
		return
	}
	m.routeTableSize.Set(float64(n))
}
