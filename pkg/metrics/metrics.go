package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics the admin server exposes.
type Metrics struct {
	// HTTP metrics (admin server's own /healthz, /metrics traffic)
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// scan_repo metrics
	ScansTotal    *prometheus.CounterVec
	ScanDuration  *prometheus.HistogramVec
	ActiveScans   *prometheus.GaugeVec
	FindingsTotal *prometheus.CounterVec

	// per-scanner-binary execution metrics (gitleaks, npm audit, checkov)
	ScannerExecutions       *prometheus.CounterVec
	ScannerExecutionSeconds *prometheus.HistogramVec

	// create_tickets / approve_ticket_plan metrics
	TicketOperations       *prometheus.CounterVec
	ApprovalGateAttempts   *prometheus.CounterVec
	ApprovalGateDuration   *prometheus.HistogramVec

	// C1-C10 system metrics
	RegistryConnections        *prometheus.GaugeVec
	DedupeCacheConnections     *prometheus.GaugeVec
	DedupeCacheHitRatio        *prometheus.GaugeVec
	RegistryQueryDuration      *prometheus.HistogramVec
	DedupeCacheOperationTime   *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal *prometheus.CounterVec

	// Resource metrics
	CPUUsage    *prometheus.GaugeVec
	MemoryUsage *prometheus.GaugeVec
	DiskUsage   *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "compliance_navigator",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests to the admin server",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of admin server HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),

		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "scans_total",
				Help:      "Total number of scan_repo invocations",
			},
			[]string{"status", "repository", "framework"},
		),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "scan_duration_seconds",
				Help:      "scan_repo wall-clock duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"status", "repository"},
		),
		ActiveScans: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "active_scans",
				Help:      "Number of currently running scan_repo invocations",
			},
			[]string{"status"},
		),
		FindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "findings_total",
				Help:      "Total number of findings detected, by severity and scanner",
			},
			[]string{"severity", "scanner", "repository"},
		),

		ScannerExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "scanner_executions_total",
				Help:      "Total number of allowlisted scanner binary invocations",
			},
			[]string{"scanner", "status"},
		),
		ScannerExecutionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "scanner_execution_duration_seconds",
				Help:      "Scanner binary execution duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"scanner", "status"},
		),

		TicketOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "ticket_operations_total",
				Help:      "Total number of create_tickets ticket operations (created, deduped, reopened, skipped)",
			},
			[]string{"target", "operation"},
		),
		ApprovalGateAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "approval_gate_attempts_total",
				Help:      "Total number of approve_ticket_plan attempts",
			},
			[]string{"status"},
		),
		ApprovalGateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "approval_gate_duration_seconds",
				Help:      "approve_ticket_plan duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"status"},
		),

		RegistryConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "registry_connections",
				Help:      "Number of connections to the best-effort Postgres registry mirror",
			},
			[]string{"state"},
		),
		DedupeCacheConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "dedupe_cache_connections",
				Help:      "Number of connections to the ticket dedupe Redis cache",
			},
			[]string{"state"},
		),
		DedupeCacheHitRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "dedupe_cache_hit_ratio",
				Help:      "Ticket dedupe cache hit ratio",
			},
			[]string{"target"},
		),
		RegistryQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "registry_query_duration_seconds",
				Help:      "Registry mirror query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation", "table"},
		),
		DedupeCacheOperationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "dedupe_cache_operation_duration_seconds",
				Help:      "Ticket dedupe cache operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of errors, by component and error type",
			},
			[]string{"component", "error_type"},
		),
		PanicsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "panics_total",
				Help:      "Total number of recovered panics, by component",
			},
			[]string{"component"},
		),

		CPUUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cpu_usage_percent",
				Help:      "CPU usage percentage",
			},
			[]string{"component"},
		),
		MemoryUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Memory usage in bytes",
			},
			[]string{"component", "type"},
		),
		DiskUsage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "disk_usage_bytes",
				Help:      "Disk usage in bytes",
			},
			[]string{"component", "type"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ScansTotal,
		m.ScanDuration,
		m.ActiveScans,
		m.FindingsTotal,
		m.ScannerExecutions,
		m.ScannerExecutionSeconds,
		m.TicketOperations,
		m.ApprovalGateAttempts,
		m.ApprovalGateDuration,
		m.RegistryConnections,
		m.DedupeCacheConnections,
		m.DedupeCacheHitRatio,
		m.RegistryQueryDuration,
		m.DedupeCacheOperationTime,
		m.ErrorsTotal,
		m.PanicsTotal,
		m.CPUUsage,
		m.MemoryUsage,
		m.DiskUsage,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordScan records scan_repo metrics
func (m *Metrics) RecordScan(status, repository, framework string, duration time.Duration) {
	if m.ScansTotal == nil {
		return
	}

	m.ScansTotal.WithLabelValues(status, repository, framework).Inc()
	m.ScanDuration.WithLabelValues(status, repository).Observe(duration.Seconds())
}

// RecordFinding records finding metrics
func (m *Metrics) RecordFinding(severity, scanner, repository string) {
	if m.FindingsTotal == nil {
		return
	}

	m.FindingsTotal.WithLabelValues(severity, scanner, repository).Inc()
}

// RecordScannerExecution records an allowlisted scanner binary invocation
func (m *Metrics) RecordScannerExecution(scanner, status string, duration time.Duration) {
	if m.ScannerExecutions == nil {
		return
	}

	m.ScannerExecutions.WithLabelValues(scanner, status).Inc()
	m.ScannerExecutionSeconds.WithLabelValues(scanner, status).Observe(duration.Seconds())
}

// RecordTicketOperation records a create_tickets outcome (created, deduped, reopened, skipped)
func (m *Metrics) RecordTicketOperation(target, operation string) {
	if m.TicketOperations == nil {
		return
	}

	m.TicketOperations.WithLabelValues(target, operation).Inc()
}

// RecordApprovalGateAttempt records an approve_ticket_plan attempt
func (m *Metrics) RecordApprovalGateAttempt(status string, duration time.Duration) {
	if m.ApprovalGateAttempts == nil {
		return
	}

	m.ApprovalGateAttempts.WithLabelValues(status).Inc()
	m.ApprovalGateDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// UpdateRegistryConnections updates registry mirror connection pool metrics
func (m *Metrics) UpdateRegistryConnections(open, idle, max int) {
	if m.RegistryConnections == nil {
		return
	}

	m.RegistryConnections.WithLabelValues("open").Set(float64(open))
	m.RegistryConnections.WithLabelValues("idle").Set(float64(idle))
	m.RegistryConnections.WithLabelValues("max").Set(float64(max))
}

// UpdateDedupeCacheConnections updates ticket dedupe Redis connection metrics
func (m *Metrics) UpdateDedupeCacheConnections(total, idle, stale int) {
	if m.DedupeCacheConnections == nil {
		return
	}

	m.DedupeCacheConnections.WithLabelValues("total").Set(float64(total))
	m.DedupeCacheConnections.WithLabelValues("idle").Set(float64(idle))
	m.DedupeCacheConnections.WithLabelValues("stale").Set(float64(stale))
}

// UpdateActiveScans updates the active scan_repo gauge
func (m *Metrics) UpdateActiveScans(status string, count int64) {
	if m.ActiveScans == nil {
		return
	}

	m.ActiveScans.WithLabelValues(status).Set(float64(count))
}

// UpdateDedupeCacheHitRatio updates the ticket dedupe cache hit ratio
func (m *Metrics) UpdateDedupeCacheHitRatio(target string, ratio float64) {
	if m.DedupeCacheHitRatio == nil {
		return
	}

	m.DedupeCacheHitRatio.WithLabelValues(target).Set(ratio)
}

// RecordRegistryQuery records a registry mirror query duration
func (m *Metrics) RecordRegistryQuery(operation, table string, duration time.Duration) {
	if m.RegistryQueryDuration == nil {
		return
	}

	m.RegistryQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDedupeCacheOperation records a ticket dedupe cache operation duration
func (m *Metrics) RecordDedupeCacheOperation(operation string, duration time.Duration) {
	if m.DedupeCacheOperationTime == nil {
		return
	}

	m.DedupeCacheOperationTime.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError records error metrics
func (m *Metrics) RecordError(component, errorType string) {
	if m.ErrorsTotal == nil {
		return
	}

	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordPanic records panic metrics
func (m *Metrics) RecordPanic(component string) {
	if m.PanicsTotal == nil {
		return
	}

	m.PanicsTotal.WithLabelValues(component).Inc()
}

// UpdateResourceUsage updates resource usage metrics
func (m *Metrics) UpdateResourceUsage(component string, cpuPercent float64, memoryBytes, diskBytes int64) {
	if m.CPUUsage != nil {
		m.CPUUsage.WithLabelValues(component).Set(cpuPercent)
	}
	if m.MemoryUsage != nil {
		m.MemoryUsage.WithLabelValues(component, "used").Set(float64(memoryBytes))
	}
	if m.DiskUsage != nil {
		m.DiskUsage.WithLabelValues(component, "used").Set(float64(diskBytes))
	}
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsCollector collects and updates system metrics periodically
type MetricsCollector struct {
	metrics  *Metrics
	interval time.Duration
	stopCh   chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(metrics *Metrics, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins metrics collection
func (mc *MetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mc.stopCh:
			return
		case <-ticker.C:
			mc.collectMetrics()
		}
	}
}

// Stop stops metrics collection
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
}

// collectMetrics collects admin server process metrics
func (mc *MetricsCollector) collectMetrics() {
	mc.metrics.UpdateResourceUsage("admin-server", 0, 0, 0)
}
