// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uxone"

// Metrics implements the observer interfaces of the pipeline, the notifier,
// the webhook forwarder and the mailbox scheduler.
type Metrics struct {
	inbound       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      prometheus.Histogram
	notifications *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
	polls         *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_emails_total",
			Help:      "Inbound emails converted, by action.",
		}, []string{"action"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_failures_total",
			Help:      "Inbound emails rejected or failed, by pipeline stage.",
		}, []string{"stage"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time to convert one inbound email.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Team notifications, by result.",
		}, []string{"result"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Outbound webhook deliveries, by result.",
		}, []string{"result"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailbox_polls_total",
			Help:      "Mailbox poll runs, by mailbox and result.",
		}, []string{"mailbox", "result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveProcessed records a converted email.
func (m *Metrics) ObserveProcessed(action string, elapsed time.Duration) {
	m.inbound.WithLabelValues(action).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveFailure records a failed email.
func (m *Metrics) ObserveFailure(stage string) {
	m.failures.WithLabelValues(stage).Inc()
}

// ObserveNotification records one notification outcome.
func (m *Metrics) ObserveNotification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// ObserveWebhookDelivery records one delivery outcome.
func (m *Metrics) ObserveWebhookDelivery(result string) {
	m.webhooks.WithLabelValues(result).Inc()
}

// ObservePoll records one mailbox poll.
func (m *Metrics) ObservePoll(mailbox, result string) {
	m.polls.WithLabelValues(mailbox, result).Inc()
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
