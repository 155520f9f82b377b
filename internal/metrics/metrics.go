// Package metrics exposes Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fintrack"

// Collector is safe to use as a nil pointer; every method is then a no-op.
type Collector struct {
	registry *prometheus.Registry

	ledgerCreated   *prometheus.CounterVec
	ledgerRejected  *prometheus.CounterVec
	summaryDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	rowsExported    prometheus.Counter
	rowsImported    *prometheus.CounterVec
	rateLimited     prometheus.Counter
	suspicious      prometheus.Counter
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		ledgerCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_created_total",
			Help:      "Ledger entities created, by entity.",
		}, []string{"entity"}),
		ledgerRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_rejected_total",
			Help:      "Create requests rejected, by entity and reason.",
		}, []string{"entity", "reason"}),
		summaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_duration_seconds",
			Help:      "Time taken to build a monthly summary.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Ledger events handed to the broker, by kind and result.",
		}, []string{"kind", "result"}),
		rowsExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_rows_exported_total",
			Help:      "Transactions appended to the spreadsheet.",
		}),
		rowsImported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ofx_rows_total",
			Help:      "OFX statement rows processed, by result.",
		}, []string{"result"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests refused by the per-client rate limit.",
		}),
		suspicious: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known probing pattern.",
		}),
	}
}

func (c *Collector) LedgerCreated(entity string) {
	if c == nil {
		return
	}
	c.ledgerCreated.WithLabelValues(entity).Inc()
}

// LedgerRejected counts a refused create. reason is a short fixed label such
// as validation_error.
func (c *Collector) LedgerRejected(entity, reason string) {
	if c == nil {
		return
	}
	c.ledgerRejected.WithLabelValues(entity, reason).Inc()
}

func (c *Collector) ObserveSummary(d time.Duration) {
	if c == nil {
		return
	}
	c.summaryDuration.Observe(d.Seconds())
}

// ObserveHTTP records one request. route is the matched pattern, never the raw
// path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) EventPublished(kind string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsPublished.WithLabelValues(kind, result).Inc()
}

func (c *Collector) RowExported() {
	if c == nil {
		return
	}
	c.rowsExported.Inc()
}

// RowImported counts one OFX row as imported, duplicate, skipped or failed.
func (c *Collector) RowImported(result string) {
	if c == nil {
		return
	}
	c.rowsImported.WithLabelValues(result).Inc()
}

func (c *Collector) RateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

func (c *Collector) SuspiciousRequest() {
	if c == nil {
		return
	}
	c.suspicious.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
