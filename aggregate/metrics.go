package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the aggregator's prometheus instruments.
type Metrics struct {
	requests        prometheus.Counter
	backendFailures *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	resultSize      prometheus.Histogram
}

// NewMetrics registers the aggregator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "semtag",
			Name:      "requests_total",
			Help:      "Annotation requests handled by the aggregator.",
		}),
		backendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semtag",
			Name:      "backend_failures_total",
			Help:      "Backend failures by backend tag and failure kind.",
		}, []string{"backend", "kind"}),
		backendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semtag",
			Name:      "backend_duration_seconds",
			Help:      "Wall time of successful backend invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"backend"}),
		resultSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semtag",
			Name:      "result_annotations",
			Help:      "Annotations per merged result.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}
