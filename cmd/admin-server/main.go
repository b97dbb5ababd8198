package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/complynav/compliance-navigator/internal/middleware"
	"github.com/complynav/compliance-navigator/internal/registry"
	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/health"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/metrics"
	"github.com/complynav/compliance-navigator/pkg/tracing"
)

// scannerBinaries lists the C2 allowlisted external tools whose presence on
// PATH this server reports under /healthz.
var scannerBinaries = []string{"gitleaks", "npm", "checkov"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "compliance-navigator-admin",
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	reg, err := registry.Open(cfg.Registry, logger)
	if err != nil {
		logger.WithComponent("admin-server").WithError(err).Warn("registry mirror unavailable, continuing without it")
	}
	defer reg.Close()

	healthSvc := health.NewService(logger, health.DefaultConfig())
	healthSvc.RegisterChecker("audit-log", health.NewCustomChecker("audit-log", auditLogWritable(cfg.Scanner.AuditLogPath)))
	healthSvc.RegisterChecker("registry", health.NewRegistryChecker(reg, "registry"))
	for _, bin := range scannerBinaries {
		healthSvc.RegisterChecker(bin, health.NewScannerBinaryChecker(bin, bin))
	}

	metricsRegistry := metrics.NewMetrics(metrics.DefaultConfig())

	tracer, err := tracing.NewTracingService(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName + "-admin",
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SamplingRate:   1.0,
		Enabled:        cfg.Tracing.Enabled(),
	})
	if err != nil {
		logger.WithComponent("admin-server").WithError(err).Warn("failed to start tracing service, continuing without it")
		tracer, _ = tracing.NewTracingService(&tracing.Config{Enabled: false})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	router := setupRouter(healthSvc, metricsRegistry, tracer, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithComponent("admin-server").Info(fmt.Sprintf("starting admin server on %s", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.WithComponent("admin-server").Info("shutting down admin server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("admin server forced to shutdown: %v", err)
	}
	logger.WithComponent("admin-server").Info("admin server exited")
}

// setupRouter wires the administrative surface: /healthz, /livez, /readyz,
// and /metrics. None of these are part of the nine caller-facing operations.
func setupRouter(healthSvc *health.Service, m *metrics.Metrics, tracer *tracing.TracingService, logger *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(m.PrometheusMiddleware())
	router.Use(tracer.TracingMiddleware())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet},
	}))

	router.GET("/healthz", healthSvc.Handler())
	router.GET("/livez", healthSvc.LivenessHandler())
	router.GET("/readyz", healthSvc.ReadinessHandler())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	return router
}

// auditLogWritable reports whether the hash-chained audit log's directory
// accepts writes, without mutating the chain itself.
func auditLogWritable(path string) func(ctx context.Context) (health.Status, string, error) {
	return func(ctx context.Context) (health.Status, string, error) {
		dir := filepath.Dir(path)
		probe, err := os.CreateTemp(dir, ".healthz-probe-*")
		if err != nil {
			return health.StatusUnhealthy, "audit log directory is not writable", err
		}
		name := probe.Name()
		probe.Close()
		os.Remove(name)
		return health.StatusHealthy, "audit log directory is writable", nil
	}
}
