package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a [Client] records to.
// A nil *Metrics records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "paysdk_requests_total",
				Help: "Total number of API calls made",
			},
			[]string{"verb", "endpoint", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paysdk_request_duration_seconds",
				Help:    "Duration of API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"verb", "endpoint"},
		),
	}
}

// observe records one call. A zero status means no response arrived.
func (m *Metrics) observe(verb, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}

	code := "error"
	if status != 0 {
		code = strconv.Itoa(status)
	}

	m.requestsTotal.WithLabelValues(verb, endpoint, code).Inc()
	m.requestDuration.WithLabelValues(verb, endpoint).Observe(d.Seconds())
}
