package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks scheduler activity.
type Metrics struct {
	ActionsDispatched *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	TickDuration      prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_actions_dispatched_total",
			Help: "Deferred actions handed to the dispatcher, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Actions currently waiting in the queue.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Time spent dispatching due actions per tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(m.ActionsDispatched, m.QueueDepth, m.TickDuration)
}
