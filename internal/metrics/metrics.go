// Package metrics exposes Prometheus collectors for option resolution,
// submissions and HTTP requests.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-formkit/pkg/options"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Namespace prefixes every metric name.
const Namespace = "formkit"

// Metrics implements options.Observer and engine.SubmitObserver on a
// private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	submissions        *prometheus.CounterVec
	submitDuration     *prometheus.HistogramVec
	requests           *prometheus.CounterVec
	liveSessions       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "option_resolutions_total",
				Help:      "Catalog queries issued for option fields",
			},
			[]string{"endpoint", "status"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "option_resolution_duration_seconds",
				Help:      "Duration of catalog queries in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "submissions_total",
				Help:      "Form submissions by outcome",
			},
			[]string{"form", "outcome"},
		),
		submitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "submission_duration_seconds",
				Help:      "Duration of validate-then-patch submissions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"form"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP runtime requests by route and status code",
			},
			[]string{"route", "code"},
		),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "live_sessions",
			Help:      "Open live form sessions",
		}),
	}
	registry.MustRegister(
		m.resolutions,
		m.resolutionDuration,
		m.submissions,
		m.submitDuration,
		m.requests,
		m.liveSessions,
		collectors.NewGoCollector(),
	)
	return m
}

var _ options.Observer = (*Metrics)(nil)

// ObserveResolution records one catalog query.
func (m *Metrics) ObserveResolution(_ string, endpoint string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.resolutions.WithLabelValues(endpoint, status).Inc()
	m.resolutionDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveSubmit records one submission attempt.
func (m *Metrics) ObserveSubmit(formID string, elapsed time.Duration, err error) {
	m.submissions.WithLabelValues(formID, outcome(err)).Inc()
	m.submitDuration.WithLabelValues(formID).Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// SessionOpened and SessionClosed track live form sessions.
func (m *Metrics) SessionOpened() { m.liveSessions.Inc() }

func (m *Metrics) SessionClosed() { m.liveSessions.Dec() }

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return "invalid"
	}
	return "error"
}
