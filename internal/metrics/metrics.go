// Package metrics provides Prometheus metrics for enrollment, recognition and
// the HTTP server.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance"

// Match outcomes.
const (
	OutcomeRegistered = "registered"
	OutcomeAlready    = "already_registered"
	OutcomeRepeated   = "repeated_in_photo"
	OutcomeUnknown    = "unknown"
)

// Metrics holds every collector of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	enrollments      *prometheus.CounterVec
	recognitions     *prometheus.CounterVec
	faces            *prometheus.CounterVec
	matchDistance    prometheus.Histogram
	recognitionTime  prometheus.Histogram
	identities       prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpRequestsTime *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	auto := promauto.With(reg)
	return &Metrics{
		registry: reg,
		enrollments: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Enrollment attempts by result",
		}, []string{"result"}),
		recognitions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognitions_total",
			Help:      "Recognition calls by result",
		}, []string{"result"}),
		faces: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_total",
			Help:      "Faces processed during recognition by outcome",
		}, []string{"outcome"}),
		matchDistance: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_distance",
			Help:      "Distance of the nearest sample for each processed face",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1, 1.5},
		}),
		recognitionTime: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_duration_seconds",
			Help:      "Time spent matching and registering one photo",
			Buckets:   prometheus.DefBuckets,
		}),
		identities: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities",
			Help:      "Number of enrolled identities seen by the last recognition",
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpRequestsTime: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Enrollment counts one enrollment attempt.
func (m *Metrics) Enrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// Recognition counts one recognition call and its duration.
func (m *Metrics) Recognition(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.recognitions.WithLabelValues(result).Inc()
	m.recognitionTime.Observe(took.Seconds())
}

// Face records the outcome of one query face and its nearest distance.
// Distances of +Inf (no comparable sample) are not observed.
func (m *Metrics) Face(outcome string, distance float64) {
	if m == nil {
		return
	}
	m.faces.WithLabelValues(outcome).Inc()
	if !math.IsInf(distance, 0) && !math.IsNaN(distance) {
		m.matchDistance.Observe(distance)
	}
}

// Identities sets the enrolled identity gauge.
func (m *Metrics) Identities(n int) {
	if m == nil {
		return
	}
	m.identities.Set(float64(n))
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route, method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestsTime.WithLabelValues(route, method).Observe(took.Seconds())
}
