package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/handler"
	"github.com/Dan9191/lending-service/internal/integrations/cbr"
	"github.com/Dan9191/lending-service/internal/metrics"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/Dan9191/lending-service/internal/repository/memory"
	"github.com/Dan9191/lending-service/internal/scheduler"
	"github.com/Dan9191/lending-service/internal/service"
	"github.com/Dan9191/lending-service/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Initialize layers
	collector := metrics.NewCollector(logger)
	cbrClient := cbr.NewCBRClient(cfg, logger)
	sender := email.NewSender(cfg, logger)
	svc := service.NewService(store, logger, cfg, collector, cbrClient, sender)
	h := handler.NewHandler(svc, logger)

	reminders := scheduler.NewReminders(cfg, svc, sender, logger)
	if err := reminders.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	metricsServer := collector.StartServer(cfg.MetricsAddr)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, svc, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s (environment: %s)", addr, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	<-reminders.Stop().Done()
	if err := collector.Shutdown(shutdownCtx, metricsServer); err != nil {
		logger.Errorf("Metrics server shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repository.Store, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database migrations applied")
	}
	return repository.NewPostgresStore(db), nil
}
