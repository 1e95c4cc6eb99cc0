package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Business metrics
	LeadsCreated        *prometheus.CounterVec
	AssignmentsCreated  *prometheus.CounterVec
	AssignmentsClosed   *prometheus.CounterVec
	BulkImportRows      *prometheus.CounterVec
	UsersRegistered     prometheus.Counter
	LoginAttempts       *prometheus.CounterVec
	NotificationsViewed prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		LeadsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_created_total",
				Help: "Total number of leads created",
			},
			[]string{"source"}, // form, bulk
		),
		AssignmentsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assignments_created_total",
				Help: "Total number of lead assignments created",
			},
			[]string{"priority"},
		),
		AssignmentsClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assignments_closed_total",
				Help: "Total number of assignments reaching a terminal status",
			},
			[]string{"status"}, // won, lost
		),
		BulkImportRows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulk_import_rows_total",
				Help: "Total number of bulk import rows processed",
			},
			[]string{"result"}, // success, failed
		),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of users registered",
		}),
		LoginAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		NotificationsViewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifications_viewed_total",
			Help: "Total number of notifications marked viewed",
		}),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordLeadCreated increments the leads created counter
func (m *Metrics) RecordLeadCreated(source string) {
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordAssignmentCreated increments the assignments created counter
func (m *Metrics) RecordAssignmentCreated(priority string) {
	m.AssignmentsCreated.WithLabelValues(priority).Inc()
}

// RecordAssignmentClosed increments the assignments closed counter
func (m *Metrics) RecordAssignmentClosed(status string) {
	m.AssignmentsClosed.WithLabelValues(status).Inc()
}

// RecordBulkImportRow counts one processed bulk import row
func (m *Metrics) RecordBulkImportRow(success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	m.BulkImportRows.WithLabelValues(result).Inc()
}

// RecordUserRegistered increments users registered counter
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordNotificationsViewed counts notifications marked viewed
func (m *Metrics) RecordNotificationsViewed(n int) {
	m.NotificationsViewed.Add(float64(n))
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
