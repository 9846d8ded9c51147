package irrigation_controller

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	Clamps          prometheus.Counter
	ControlFailures prometheus.Counter
	RuntimeSeconds  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irrigation",
			Name:      "decisions_total",
			Help:      "Decision runs by outcome (ok or the error kind).",
		}, []string{"outcome"}),
		Clamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irrigation",
			Name:      "discharge_rate_clamped_total",
			Help:      "Predictions floored at the minimum discharge rate.",
		}),
		ControlFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "irrigation",
			Name:      "control_write_failures_total",
			Help:      "Runtime writes to the control channel that failed.",
		}),
		RuntimeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "irrigation",
			Name:      "pump_runtime_seconds",
			Help:      "Computed pump runtimes.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions, m.Clamps, m.ControlFailures, m.RuntimeSeconds)
	}
	return m
}

func (m *Metrics) outcome(o string) {
	if m != nil {
		m.Decisions.WithLabelValues(o).Inc()
	}
}

func (m *Metrics) clamped() {
	if m != nil {
		m.Clamps.Inc()
	}
}

func (m *Metrics) controlFailed() {
	if m != nil {
		m.ControlFailures.Inc()
	}
}

func (m *Metrics) runtime(s float64) {
	if m != nil {
		m.RuntimeSeconds.Observe(s)
	}
}
