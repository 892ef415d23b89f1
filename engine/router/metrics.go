package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the optional performance-monitoring sidecar named in spec.md §6
// by the CCR_PERFORMANCE_MONITORING environment variable: per-scenario
// decision counters and a latency histogram, grounded on the teacher's
// metrics-naming convention (engine/infra/monitoring/metrics/naming.go) but
// backed directly by prometheus/client_golang rather than the teacher's
// OpenTelemetry meter, since CCR carries no OTel SDK dependency.
type Metrics struct {
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewMetrics registers the router's instruments against reg and returns a
// Metrics ready to pass as RouterContext.Metrics. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccr",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routing decisions, labeled by scenario and reason.",
		}, []string{"scenario", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ccr",
			Subsystem: "router",
			Name:      "decision_duration_seconds",
			Help:      "Time spent walking the routing priority chain, labeled by scenario.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scenario"}),
	}
	reg.MustRegister(m.decisions, m.latency)
	return m
}

// observe records one routing decision. Safe to call on a nil *Metrics.
func (m *Metrics) observe(scenario ScenarioType, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(scenario), reason).Inc()
	m.latency.WithLabelValues(string(scenario)).Observe(elapsed.Seconds())
}
