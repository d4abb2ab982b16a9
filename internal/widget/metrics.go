package widget

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the manager's prometheus instruments. A nil *metrics is
// valid and turns every recording call into a no-op, so the manager keeps
// working when registration fails or no registerer was supplied.
type metrics struct {
	loads    prometheus.Counter
	failures prometheus.Counter
	timeouts prometheus.Counter
	reloads  prometheus.Counter
	active   prometheus.Gauge
}

// newMetrics creates and registers widget metrics with the registry.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	m := &metrics{
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "widget",
			Name:      "loads_total",
			Help:      "Total number of widget module loads completed",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "widget",
			Name:      "load_failures_total",
			Help:      "Total number of widget module loads that faulted",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "widget",
			Name:      "load_timeouts_total",
			Help:      "Total number of widget module loads that exceeded the deadline",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "widget",
			Name:      "reloads_total",
			Help:      "Total number of widget reloads",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mosaic",
			Subsystem: "widget",
			Name:      "active",
			Help:      "Current number of widgets in the ready state",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.loads, m.failures, m.timeouts, m.reloads, m.active,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) incLoaded() {
	if m != nil {
		m.loads.Inc()
		m.active.Inc()
	}
}

func (m *metrics) incFailure() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *metrics) incTimeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}

func (m *metrics) incReload() {
	if m != nil {
		m.reloads.Inc()
	}
}

func (m *metrics) decActive() {
	if m != nil {
		m.active.Dec()
	}
}
