package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the bot's Prometheus metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	eventsTotal     *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	renamesTotal    *prometheus.CounterVec
	flowTransitions *prometheus.CounterVec
	broadcastsTotal *prometheus.CounterVec
	storageErrors   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers on the default registry.
func NewCollector(activeSessions func() float64) *Collector {
	return NewCollectorWithRegistry(nil, activeSessions)
}

// NewCollectorWithRegistry registers on registry, or on the default registry
// when registry is nil. activeSessions backs a gauge read at scrape time.
func NewCollectorWithRegistry(registry *prometheus.Registry, activeSessions func() float64) *Collector {
	var factory promauto.Factory
	var gatherer prometheus.Gatherer
	if registry == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	} else {
		factory = promauto.With(registry)
		gatherer = registry
	}

	c := &Collector{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autorename_events_total",
				Help: "Inbound events by kind and outcome",
			},
			[]string{"kind", "status"},
		),

		eventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autorename_event_duration_seconds",
				Help:    "Time spent handling one inbound event",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),

		renamesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autorename_renames_total",
				Help: "Rename attempts by outcome",
			},
			[]string{"status"},
		),

		flowTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autorename_flow_transitions_total",
				Help: "Conversation flow transitions",
			},
			[]string{"flow", "transition"},
		),

		broadcastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autorename_broadcast_deliveries_total",
				Help: "Broadcast deliveries by outcome",
			},
			[]string{"status"},
		),

		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autorename_storage_errors_total",
				Help: "Operations that failed because storage was unavailable",
			},
			[]string{"op"},
		),

		gatherer: gatherer,
	}

	if activeSessions != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "autorename_active_sessions",
				Help: "Pending conversation sessions",
			},
			activeSessions,
		)
	}

	return c
}

// RecordEvent counts one handled event and its duration.
func (c *Collector) RecordEvent(kind, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(kind, status).Inc()
	c.eventDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (c *Collector) RecordRename(status string) {
	if c == nil {
		return
	}
	c.renamesTotal.WithLabelValues(status).Inc()
}

// RecordFlow counts a transition such as "begin", "complete" or "cancel".
func (c *Collector) RecordFlow(flow, transition string) {
	if c == nil {
		return
	}
	c.flowTransitions.WithLabelValues(flow, transition).Inc()
}

func (c *Collector) RecordBroadcast(success, failed int) {
	if c == nil {
		return
	}
	c.broadcastsTotal.WithLabelValues("success").Add(float64(success))
	c.broadcastsTotal.WithLabelValues("failed").Add(float64(failed))
}

func (c *Collector) RecordStorageError(op string) {
	if c == nil {
		return
	}
	c.storageErrors.WithLabelValues(op).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
