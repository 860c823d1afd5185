package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so isolated instances can exist in tests.
type Collector struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	authzDecisions  *prometheus.CounterVec
	auditEvents     prometheus.Counter
	purgeItemsTotal prometheus.Counter
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"outcome", "risk"}),
		auditEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Audit events written to the ledger.",
		}),
		purgeItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retention_purged_items_total",
			Help: "Records destroyed by retention purges.",
		}),
	}
	c.registry.MustRegister(c.httpRequests, c.httpDuration, c.authzDecisions, c.auditEvents, c.purgeItemsTotal)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordDecision(allowed bool, risk string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	c.authzDecisions.WithLabelValues(outcome, risk).Inc()
}

func (c *Collector) RecordAuditEvent() {
	c.auditEvents.Inc()
}

func (c *Collector) RecordPurgedItems(n int) {
	c.purgeItemsTotal.Add(float64(n))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with request count and latency measurement.
// The route pattern should come from the router, not the raw URL, to keep
// label cardinality bounded.
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		c.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.code)).Inc()
		c.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
