package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
		[]string{"database", "service"},
	)

	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Visibility filter metrics
	visibilityFilterTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visibility_filter_requests_total",
			Help: "Total number of visibility filter evaluations",
		},
		[]string{"actor_role", "outcome", "service"},
	)

	visibilityRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visibility_records_total",
			Help: "Total number of records evaluated by the visibility filter",
		},
		[]string{"decision", "service"},
	)

	// Downline resolution metrics
	downlineResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downline_resolutions_total",
			Help: "Total number of downline resolutions",
		},
		[]string{"result", "service"},
	)

	downlineCacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "downline_cache_entries",
			Help: "Number of entries in the downline cache",
		},
		[]string{"service"},
	)

	// Read-only enforcement metrics
	readOnlyActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readonly_activations_total",
			Help: "Total number of read-only view activations",
		},
		[]string{"actor_role", "target_role", "service"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status", "service"},
	)

	// Audit log metrics
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events",
		},
		[]string{"event_type", "success", "service"},
	)

	auditRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_retries_total",
			Help: "Total number of audit write retries",
		},
		[]string{"service"},
	)

	// Alerting metrics
	alertsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Total number of operational alerts sent",
		},
		[]string{"severity", "channel", "service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)

	registerMetricsOnce sync.Once
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			dbConnectionsActive,
			dbQueryDuration,
			visibilityFilterTotal,
			visibilityRecordsTotal,
			downlineResolutionsTotal,
			downlineCacheEntries,
			readOnlyActivationsTotal,
			authAttemptsTotal,
			auditEventsTotal,
			auditRetriesTotal,
			alertsSentTotal,
			systemErrors,
		)
	})

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBConnection records database connection metrics
func (m *MetricsCollector) RecordDBConnection(database string, activeConnections int) {
	dbConnectionsActive.WithLabelValues(database, m.serviceName).Set(float64(activeConnections))
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordVisibilityFilter records one visibility filter evaluation
func (m *MetricsCollector) RecordVisibilityFilter(actorRole, outcome string) {
	visibilityFilterTotal.WithLabelValues(actorRole, outcome, m.serviceName).Inc()
}

// RecordVisibilityRecords records per-record filter decisions
func (m *MetricsCollector) RecordVisibilityRecords(decision string, count int) {
	visibilityRecordsTotal.WithLabelValues(decision, m.serviceName).Add(float64(count))
}

// RecordDownlineResolution records downline resolution outcomes
func (m *MetricsCollector) RecordDownlineResolution(result string) {
	downlineResolutionsTotal.WithLabelValues(result, m.serviceName).Inc()
}

// RecordDownlineCacheSize records the downline cache entry count
func (m *MetricsCollector) RecordDownlineCacheSize(entries int) {
	downlineCacheEntries.WithLabelValues(m.serviceName).Set(float64(entries))
}

// RecordReadOnlyActivation records a read-only view activation
func (m *MetricsCollector) RecordReadOnlyActivation(actorRole, targetRole string) {
	readOnlyActivationsTotal.WithLabelValues(actorRole, targetRole, m.serviceName).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status, m.serviceName).Inc()
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(eventType string, success bool) {
	successStr := strconv.FormatBool(success)
	auditEventsTotal.WithLabelValues(eventType, successStr, m.serviceName).Inc()
}

// RecordAuditRetry records an audit write retry
func (m *MetricsCollector) RecordAuditRetry() {
	auditRetriesTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordAlertSent records an operational alert dispatch
func (m *MetricsCollector) RecordAlertSent(severity, channel string) {
	alertsSentTotal.WithLabelValues(severity, channel, m.serviceName).Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
