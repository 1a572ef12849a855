package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "digital_wallet"

// Metrics holds the settlement and ledger collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	claimsTotal        *prometheus.CounterVec
	settlementsTotal   *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	ledgerRetriesTotal *prometheus.CounterVec
	callerAbandoned    prometheus.Counter
	webhooksTotal      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		claimsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "idempotency",
				Name:      "claims_total",
				Help:      "Claim attempts partitioned by result.",
			},
			[]string{"result"},
		),
		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "events_total",
				Help:      "Settlement events partitioned by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		settlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "duration_seconds",
				Help:      "Time from receiving a settlement event to its outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		ledgerRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "retries_total",
				Help:      "Optimistic concurrency retries partitioned by operation.",
			},
			[]string{"operation"},
		),
		callerAbandoned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "caller_abandoned_total",
				Help:      "Settlements that completed after the caller stopped waiting.",
			},
		),
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "webhooks_total",
				Help:      "Gateway webhook deliveries partitioned by result.",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSettlement(source, direction, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(source, outcome).Inc()
	m.settlementDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLedgerRetry(operation string) {
	if m == nil {
		return
	}
	m.ledgerRetriesTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveCallerAbandoned() {
	if m == nil {
		return
	}
	m.callerAbandoned.Inc()
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(result).Inc()
}
