package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	eventsIngestedTotal *prometheus.CounterVec
	ingestDegradedTotal prometheus.Counter
	eventsEvictedTotal  *prometheus.CounterVec
	eventLogSize        prometheus.Gauge

	clerkQueryDuration *prometheus.HistogramVec
	clerkErrorsTotal   *prometheus.CounterVec
	commandsTotal      *prometheus.CounterVec

	feedClients prometheus.Gauge
}

// NewPrometheusSink creates a sink registered with reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initHubMetrics(reg)
	s.initClerkMetrics(reg)
	return s
}

func (s *PrometheusSink) initHubMetrics(reg prometheus.Registerer) {
	s.eventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedpanel_events_ingested_total",
		Help: "Total number of scheduler events pushed into the hub.",
	}, []string{"mode"})
	s.ingestDegradedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedpanel_events_ingest_degraded_total",
		Help: "Total number of pushes that could not reach the shared event store.",
	})
	s.eventsEvictedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedpanel_events_evicted_total",
		Help: "Total number of events evicted from the local event log.",
	}, []string{"reason"})
	s.eventLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedpanel_event_log_size",
		Help: "Current number of events in the local event log.",
	})

	s.register(reg, s.eventsIngestedTotal, "schedpanel_events_ingested_total")
	s.register(reg, s.ingestDegradedTotal, "schedpanel_events_ingest_degraded_total")
	s.register(reg, s.eventsEvictedTotal, "schedpanel_events_evicted_total")
	s.register(reg, s.eventLogSize, "schedpanel_event_log_size")
}

func (s *PrometheusSink) initClerkMetrics(reg prometheus.Registerer) {
	s.clerkQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedpanel_clerk_query_duration_seconds",
		Help:    "Duration of scheduler queries issued by the clerk.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})
	s.clerkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedpanel_clerk_query_errors_total",
		Help: "Total number of clerk queries that returned an error.",
	}, []string{"op"})
	s.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedpanel_commands_total",
		Help: "Total number of control commands forwarded to the scheduler.",
	}, []string{"command", "result"})
	s.feedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedpanel_feed_clients",
		Help: "Current number of connected live feed clients.",
	})

	s.register(reg, s.clerkQueryDuration, "schedpanel_clerk_query_duration_seconds")
	s.register(reg, s.clerkErrorsTotal, "schedpanel_clerk_query_errors_total")
	s.register(reg, s.commandsTotal, "schedpanel_commands_total")
	s.register(reg, s.feedClients, "schedpanel_feed_clients")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("metrics: failed to register collector")
	}
}

func (s *PrometheusSink) EventIngested(mode string) {
	s.eventsIngestedTotal.WithLabelValues(mode).Inc()
}

func (s *PrometheusSink) IngestDegraded() {
	s.ingestDegradedTotal.Inc()
}

func (s *PrometheusSink) EventsEvicted(reason string, n int) {
	if n > 0 {
		s.eventsEvictedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

func (s *PrometheusSink) EventLogSize(n int) {
	s.eventLogSize.Set(float64(n))
}

func (s *PrometheusSink) ClerkQuery(op string, d time.Duration, err error) {
	s.clerkQueryDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		s.clerkErrorsTotal.WithLabelValues(op).Inc()
	}
}

func (s *PrometheusSink) CommandExecuted(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.commandsTotal.WithLabelValues(command, result).Inc()
}

func (s *PrometheusSink) FeedClients(n int) {
	s.feedClients.Set(float64(n))
}
