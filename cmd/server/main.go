package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/rentledger/api/internal/config"
	"github.com/stwalsh4118/rentledger/api/internal/database"
	"github.com/stwalsh4118/rentledger/api/internal/handlers"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/notify"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
	"github.com/stwalsh4118/rentledger/api/internal/repository/memstore"
	"github.com/stwalsh4118/rentledger/api/internal/scheduler"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, logger.WithLevel(cfg.Log.Level))
	log.Info("Starting RentLedger API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"storage":     cfg.Storage.Driver,
	})

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		log.Fatal("Invalid billing timezone", err, map[string]interface{}{
			"timezone": cfg.Billing.Timezone,
		})
	}

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// Notifications are stored for every event; SMS only when configured
	var sms notify.SMSSender
	if cfg.SMS.Enabled() {
		sms = notify.NewTwilioSender(cfg.SMS)
		log.Info("SMS notifications enabled", map[string]interface{}{
			"from": cfg.SMS.FromPhone,
		})
	}
	dispatcher := notify.NewDispatcher(store.Repos().Notifications, sms, log)

	// Initialize service layer
	opts := services.Options{
		Location:   loc,
		MaxRetries: cfg.Billing.LockMaxRetries,
	}
	billing := services.NewBillingService(store, dispatcher, log, opts, cfg.Billing.SweepWorkers)
	svc := handlers.Services{
		Properties:    services.NewPropertyService(store, log, opts),
		Allocation:    services.NewAllocationService(store, log, opts),
		Tenants:       services.NewTenantService(store, log, opts),
		Payments:      services.NewReconciliationService(store, dispatcher, log, opts),
		Billing:       billing,
		Notifications: services.NewNotificationService(store),
	}

	jobs, err := scheduler.New(cfg.Billing, billing, log)
	if err != nil {
		log.Fatal("Failed to configure billing scheduler", err, map[string]interface{}{
			"sweep_cron":   cfg.Billing.SweepCron,
			"overdue_cron": cfg.Billing.OverdueCron,
		})
	}
	jobs.Start()

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		Env:           cfg.Server.Env,
		Storage:       cfg.Storage.Driver,
		CORSOrigins:   cfg.CORS.Origins,
		CallbackToken: cfg.Gateway.CallbackToken,
		Location:      loc,
		Jobs:          jobs,
	}, store, svc, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Error("Billing jobs still running at shutdown", err, nil)
	}

	log.Info("Server exited", nil)
}

// openStore connects the configured storage backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Store, func()) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("Using in-memory storage; data is lost on restart", nil)
		return memstore.New(), func() {}
	}

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		log.Fatal("Failed to apply database schema", err, nil)
	}

	return repository.NewPostgresStore(db), db.Close
}
