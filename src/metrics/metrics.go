// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the gateway's Prometheus collectors.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	EventsPublished  *prometheus.CounterVec
	DroppedSends     prometheus.Counter
}

// New creates the collectors and registers them on reg. Pass nil to skip
// registration (tests create multiple hubs against the same process).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "realtime",
			Name:      "connected_clients",
			Help:      "Number of currently connected WebSocket clients.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "events_published_total",
			Help:      "Events published to rooms, by event name.",
		}, []string{"event"}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "dropped_sends_total",
			Help:      "Events dropped because a client send buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectedClients, m.EventsPublished, m.DroppedSends)
	}
	return m
}
