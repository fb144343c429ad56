// Package metrics exposes clinic activity counters in the Prometheus text
// format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"NutriVida_Pro/internal/database"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	consultationsCreated prometheus.Counter
	cascadeFailures      *prometheus.CounterVec
	appointmentsCreated  prometheus.Counter
}

// New builds a registry of its own so tests and multiple servers in one
// process do not collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutrivida",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutrivida",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		consultationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutrivida",
			Name:      "consultations_created_total",
			Help:      "Consultations stored.",
		}),
		cascadeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutrivida",
			Name:      "consultation_cascade_failures_total",
			Help:      "Post-insert consultation writes that failed, by step.",
		}, []string{"step"}),
		appointmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutrivida",
			Name:      "appointments_created_total",
			Help:      "Appointments booked from the public site.",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.consultationsCreated,
		m.cascadeFailures,
		m.appointmentsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordRequest(route, method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordCascadeFailure(step string) {
	m.cascadeFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) AppointmentCreated(database.Appointment) {
	m.appointmentsCreated.Inc()
}

func (m *Metrics) ConsultationCreated(database.Consultation) {
	m.consultationsCreated.Inc()
}

// Middleware counts every request under its route pattern, not the raw path,
// so ids do not explode the label set.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(route, c.Request().Method, status, time.Since(start))
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
