package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters exposed on /metrics. Every instance
// carries its own registry so the gateway and tests can build them freely.
type Metrics struct {
	registry *prometheus.Registry

	eventsAccepted  prometheus.Counter
	eventsRejected  *prometheus.CounterVec
	collabFailures  *prometheus.CounterVec
	reportsRendered prometheus.Counter
	mediaProduced   prometheus.Counter
	openDays        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.eventsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlasbrief",
		Name:      "events_accepted_total",
		Help:      "Number of submissions accepted into a daily report",
	})
	m.eventsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlasbrief",
		Name:      "events_rejected_total",
		Help:      "Number of submissions rejected by stage",
	}, []string{"stage"})
	m.collabFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlasbrief",
		Name:      "collaborator_failures_total",
		Help:      "Number of external service calls that exhausted their retries",
	}, []string{"collaborator"})
	m.reportsRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlasbrief",
		Name:      "reports_rendered_total",
		Help:      "Number of daily report documents rendered",
	})
	m.mediaProduced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlasbrief",
		Name:      "media_produced_total",
		Help:      "Number of narrated report videos produced",
	})
	m.openDays = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atlasbrief",
		Name:      "open_days",
		Help:      "Number of logical days currently accumulating events",
	})

	m.registry.MustRegister(
		m.eventsAccepted, m.eventsRejected, m.collabFailures,
		m.reportsRendered, m.mediaProduced, m.openDays,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventAccepted()         { m.eventsAccepted.Inc() }
func (m *Metrics) EventRejected(s string) { m.eventsRejected.WithLabelValues(s).Inc() }

// CollaboratorFailed records an external dependency that stayed down
// through all retry attempts.
func (m *Metrics) CollaboratorFailed(name string) { m.collabFailures.WithLabelValues(name).Inc() }

func (m *Metrics) ReportRendered()   { m.reportsRendered.Inc() }
func (m *Metrics) MediaProduced()    { m.mediaProduced.Inc() }
func (m *Metrics) SetOpenDays(n int) { m.openDays.Set(float64(n)) }
