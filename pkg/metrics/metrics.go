// Package metrics holds the prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	CheckIns        prometheus.Counter
	CheckOuts       prometheus.Counter
	LatePickups     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	ErrorsCount     *prometheus.CounterVec
}

// New registers the service metrics on reg and returns them.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckIns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "The total number of successful check-ins",
		}),
		CheckOuts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "The total number of successful check-outs",
		}),
		LatePickups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_pickups_total",
			Help:      "The total number of check-outs after closing time",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of failed operations",
		}, []string{"operation"}),
	}
}
