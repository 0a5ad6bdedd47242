package workflow

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks lifecycle requests and completed workflows.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	MigrationsTotal *prometheus.CounterVec
	DeletionsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_requests_total",
			Help: "Lifecycle requests received, by kind and resulting status.",
		}, []string{"kind", "status"}),
		MigrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_migrations_total",
			Help: "Executed migrations, by outcome.",
		}, []string{"outcome"}),
		DeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_deletions_total",
			Help: "Executed deletions, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(m.RequestsTotal, m.MigrationsTotal, m.DeletionsTotal)
}

func (m *Metrics) request(kind string, status Status) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind, string(status)).Inc()
}

func (m *Metrics) migration(outcome string) {
	if m == nil {
		return
	}
	m.MigrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) deletion(outcome string) {
	if m == nil {
		return
	}
	m.DeletionsTotal.WithLabelValues(outcome).Inc()
}
