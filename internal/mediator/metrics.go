package mediator

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the mediator's prometheus instruments. A nil *metrics is
// valid and turns every recording call into a no-op, so the mediator keeps
// working when registration fails or no registerer was supplied.
type metrics struct {
	published      prometheus.Counter
	queued         prometheus.Counter
	delivered      prometheus.Counter
	deliveryFaults prometheus.Counter
	denied         *prometheus.CounterVec
	drains         prometheus.Counter
	queueDepth     prometheus.Gauge
}

// newMetrics creates and registers mediator metrics with the registry.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	m := &metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "events_published_total",
			Help:      "Total number of publish invocations accepted",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "events_queued_total",
			Help:      "Total number of publishes buffered during suspension",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "deliveries_total",
			Help:      "Total number of handler deliveries attempted",
		}),
		deliveryFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "delivery_faults_total",
			Help:      "Total number of handler errors and panics during fan-out",
		}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "permission_denials_total",
			Help:      "Total number of silently filtered operations",
		}, []string{"action"}),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "suspension_drains_total",
			Help:      "Total number of suspension queue drains",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mosaic",
			Subsystem: "mediator",
			Name:      "emit_queue_depth",
			Help:      "Current number of buffered publishes",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.published, m.queued, m.delivered, m.deliveryFaults,
		m.denied, m.drains, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) incPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *metrics) incQueued(depth int) {
	if m != nil {
		m.queued.Inc()
		m.queueDepth.Set(float64(depth))
	}
}

func (m *metrics) incDelivered() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *metrics) incDeliveryFault() {
	if m != nil {
		m.deliveryFaults.Inc()
	}
}

func (m *metrics) incDenied(action string) {
	if m != nil {
		m.denied.WithLabelValues(action).Inc()
	}
}

func (m *metrics) incDrain(depth int) {
	if m != nil {
		m.drains.Inc()
		m.queueDepth.Set(float64(depth))
	}
}
