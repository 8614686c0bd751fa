package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so packages can take it as an
// optional dependency.
type Metrics struct {
	// HTTPRequestDuration measures API latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// SourceFetchDuration measures one inbox source fetch.
	// Labels: source (calls|emails|chats), status (ready|failed)
	SourceFetchDuration *prometheus.HistogramVec

	// SourceFetchFailures counts failed source fetches (degraded inbox loads).
	// Labels: source
	SourceFetchFailures *prometheus.CounterVec

	// InboxItems observes the size of each aggregated inbox page.
	InboxItems prometheus.Histogram

	// InboxRejected counts loads refused by the per-operator cap.
	InboxRejected prometheus.Counter

	// ValidationFailures counts rejected payloads.
	// Labels: operation
	ValidationFailures *prometheus.CounterVec

	// CommunicationsCreated counts persisted records.
	// Labels: type (call|email|chat|chat_message), origin (api|telephony)
	CommunicationsCreated *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg. Pass prometheus.DefaultRegisterer
// in production and prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
		SourceFetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_inbox_source_fetch_duration_seconds",
				Help:    "Duration of inbox source fetches in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"source", "status"},
		),
		SourceFetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_inbox_source_fetch_failures_total",
				Help: "Total number of failed inbox source fetches",
			},
			[]string{"source"},
		),
		InboxItems: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crm_inbox_items",
			Help:    "Number of items returned per unified inbox load",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		InboxRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "crm_inbox_rejected_total",
			Help: "Total number of inbox loads rejected by the per-operator cap",
		}),
		ValidationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_validation_failures_total",
				Help: "Total number of payloads rejected by validation",
			},
			[]string{"operation"},
		),
		CommunicationsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_communications_created_total",
				Help: "Total number of communication records created",
			},
			[]string{"type", "origin"},
		),
	}
}

func (m *Metrics) SourceFetched(source string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ready"
	if !ok {
		status = "failed"
		m.SourceFetchFailures.WithLabelValues(source).Inc()
	}
	m.SourceFetchDuration.WithLabelValues(source, status).Observe(d.Seconds())
}

func (m *Metrics) InboxLoaded(items int) {
	if m == nil {
		return
	}
	m.InboxItems.Observe(float64(items))
}

func (m *Metrics) InboxBusy() {
	if m == nil {
		return
	}
	m.InboxRejected.Inc()
}

func (m *Metrics) ValidationFailed(operation string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) Created(typ, origin string) {
	if m == nil {
		return
	}
	m.CommunicationsCreated.WithLabelValues(typ, origin).Inc()
}

// GinMiddleware records request latency by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
