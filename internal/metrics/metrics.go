// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSubscriptions prometheus.Gauge
	SnapshotsDelivered  *prometheus.CounterVec
	SnapshotsDiscarded  prometheus.Counter
	Mutations           *prometheus.CounterVec
	AuthAttempts        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	ChangesPublished    prometheus.Counter
	ChangesConsumed     prometheus.Counter
	RateLimited         prometheus.Counter
	SuspiciousRequests  prometheus.Counter
	WebsocketClients    prometheus.Gauge
	ExportsTotal        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yeardash",
			Name:      "active_subscriptions",
			Help:      "Collection subscriptions currently open.",
		}),
		SnapshotsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "snapshots_delivered_total",
			Help:      "Snapshots delivered to subscribers, by collection and outcome.",
		}, []string{"collection", "outcome"}),
		SnapshotsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "snapshots_discarded_total",
			Help:      "Snapshots that arrived after their subscription was stopped.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "mutations_total",
			Help:      "Mutation gateway calls, by collection, operation and outcome.",
		}, []string{"collection", "operation", "outcome"}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "auth_attempts_total",
			Help:      "Auth gateway calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status code.",
		}, []string{"method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "yeardash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ChangesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "changes_published_total",
			Help:      "Change notifications published to the broker.",
		}),
		ChangesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "changes_consumed_total",
			Help:      "Change notifications from other instances applied locally.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		SuspiciousRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "yeardash",
			Name:      "websocket_clients",
			Help:      "Websocket streams currently open.",
		}),
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yeardash",
			Name:      "exports_total",
			Help:      "Finance exports, by target and outcome.",
		}, []string{"target", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ActiveSubscriptions,
		m.SnapshotsDelivered,
		m.SnapshotsDiscarded,
		m.Mutations,
		m.AuthAttempts,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ChangesPublished,
		m.ChangesConsumed,
		m.RateLimited,
		m.SuspiciousRequests,
		m.WebsocketClients,
		m.ExportsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SubscriptionOpened() {
	if m != nil {
		m.ActiveSubscriptions.Inc()
	}
}

func (m *Metrics) SubscriptionClosed() {
	if m != nil {
		m.ActiveSubscriptions.Dec()
	}
}

func (m *Metrics) SnapshotDelivered(collection string, err error) {
	if m != nil {
		m.SnapshotsDelivered.WithLabelValues(collection, outcome(err)).Inc()
	}
}

func (m *Metrics) SnapshotDiscarded() {
	if m != nil {
		m.SnapshotsDiscarded.Inc()
	}
}

func (m *Metrics) Mutation(collection, operation string, err error) {
	if m != nil {
		m.Mutations.WithLabelValues(collection, operation, outcome(err)).Inc()
	}
}

func (m *Metrics) Auth(operation string, err error) {
	if m != nil {
		m.AuthAttempts.WithLabelValues(operation, outcome(err)).Inc()
	}
}

func (m *Metrics) ChangePublished() {
	if m != nil {
		m.ChangesPublished.Inc()
	}
}

func (m *Metrics) ChangeConsumed() {
	if m != nil {
		m.ChangesConsumed.Inc()
	}
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method string, code int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
		m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) SuspiciousRequest() {
	if m != nil {
		m.SuspiciousRequests.Inc()
	}
}

func (m *Metrics) WebsocketOpened() {
	if m != nil {
		m.WebsocketClients.Inc()
	}
}

func (m *Metrics) WebsocketClosed() {
	if m != nil {
		m.WebsocketClients.Dec()
	}
}

func (m *Metrics) Export(target string, err error) {
	if m != nil {
		m.ExportsTotal.WithLabelValues(target, outcome(err)).Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
