package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kubelog"

type Metrics struct {
	registry           *prometheus.Registry
	FramesTotal        *prometheus.CounterVec
	MalformedFrames    prometheus.Counter
	EvictionsTotal     prometheus.Counter
	ConnectionsOpened  prometheus.Counter
	ConnectionFailures prometheus.Counter
	ActiveConnections  prometheus.Gauge
	PendingMessages    prometheus.Gauge
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Classified inbound frames by kind",
		}, []string{"kind"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Inbound frames dropped because they could not be parsed",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Log lines evicted from the visible buffer",
		}),
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Stream connections successfully opened",
		}),
		ConnectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_failures_total",
			Help:      "Stream connections that failed to open or dropped",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Stream connections currently open",
		}),
		PendingMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_messages",
			Help:      "Log lines held back while the stream is paused",
		}),
	}
	r.MustRegister(
		m.FramesTotal,
		m.MalformedFrames,
		m.EvictionsTotal,
		m.ConnectionsOpened,
		m.ConnectionFailures,
		m.ActiveConnections,
		m.PendingMessages,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
