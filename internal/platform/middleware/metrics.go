package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and domain collectors.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	AppointmentConflicts prometheus.Counter
	AuthorizationDenials *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediconnect_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediconnect_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		AppointmentConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediconnect_appointment_conflicts_total",
			Help: "Appointment create/reschedule attempts rejected for a taken slot",
		}),
		AuthorizationDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediconnect_authorization_denials_total",
			Help: "Requests rejected with 403",
		}, []string{"route"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.AppointmentConflicts, m.AuthorizationDenials)
	return m
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			m.RequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			if status == 403 {
				m.AuthorizationDenials.WithLabelValues(route).Inc()
			}
			return nil
		}
	}
}

// IncConflict satisfies the scheduling package's conflict observer.
func (m *Metrics) IncConflict() {
	m.AppointmentConflicts.Inc()
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
