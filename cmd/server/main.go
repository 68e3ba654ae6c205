package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/config"
	"github.com/mmynk/qchemaxis/internal/httpapi"
	"github.com/mmynk/qchemaxis/internal/maintenance"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/middleware"
	"github.com/mmynk/qchemaxis/internal/rpc"
	"github.com/mmynk/qchemaxis/internal/service"
	"github.com/mmynk/qchemaxis/internal/storage/sqlite"
	"github.com/mmynk/qchemaxis/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	httpMetrics, err := metrics.NewHTTPMetrics(metrics.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	domainMetrics, err := metrics.NewDomain(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)

	adminPolicy := middleware.NewAdminPolicy(cfg.Admin.Emails)
	if adminPolicy.Open() {
		logger.Warn("admin.emails is empty; every authenticated user can use admin endpoints")
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Account:     service.NewAccountService(store, store, hasher, jwtManager, domainMetrics, logger),
		Admin:       service.NewAdminService(store, hasher, logger),
		Quiz:        service.NewQuizService(store, domainMetrics, logger),
		JWT:         jwtManager,
		AdminPolicy: adminPolicy,
		Store:       store,
		Metrics:     httpMetrics,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
		DevMode:     cfg.Server.DevMode,
	})

	mux := http.NewServeMux()

	// Register Connect services
	maintenanceService := rpc.NewMaintenanceService(
		maintenance.NewAuditor(store, logger),
		maintenance.NewCleaner(store, hasher, domainMetrics, logger),
		logger,
	)
	mux.Handle(rpc.NewMaintenanceServiceHandler(maintenanceService, connect.WithInterceptors(
		middleware.LoggingInterceptor(logger),
		middleware.RequireAuth(jwtManager),
		middleware.RequireAdmin(adminPolicy),
	)))

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", srv.Addr, "dev_mode", cfg.Server.DevMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
