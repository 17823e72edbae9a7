package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/erp/wms-sync/internal/application/sync"
	domainsync "github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/cache"
	"github.com/erp/wms-sync/internal/infrastructure/config"
	"github.com/erp/wms-sync/internal/infrastructure/logger"
	"github.com/erp/wms-sync/internal/infrastructure/persistence"
	"github.com/erp/wms-sync/internal/infrastructure/scheduler"
	"github.com/erp/wms-sync/internal/infrastructure/wms"
	"github.com/erp/wms-sync/internal/interfaces/http/handler"
	"github.com/erp/wms-sync/internal/interfaces/http/middleware"
	"github.com/erp/wms-sync/internal/interfaces/http/router"
)

// maxWebhookBodyBytes bounds webhook intake payloads
const maxWebhookBodyBytes = 1 << 20

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Priority and prerequisite tables are package data; a bad edit should
	// stop the process before it claims any job
	if err := domainsync.ValidatePriorityTables(); err != nil {
		panic("Invalid event priority tables: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting WMS sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	orderRepo := persistence.NewOrderRepository(db.DB)
	orderStateRepo := persistence.NewOrderStateRepository(db.DB)
	productRepo := persistence.NewProductRepository(db.DB)
	methodRepo := persistence.NewShippingMethodRepository(db.DB)
	webhookJobRepo := persistence.NewWebhookJobRepository(db.DB)
	syncJobRepo := persistence.NewSyncJobRepository(db.DB)

	// One-time migration of the legacy per-order sync flags into the state
	// store; re-running is a no-op
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	migrated, err := orderStateRepo.MigrateLegacyFlags(startupCtx)
	cancelStartup()
	if err != nil {
		log.Fatal("Failed to migrate legacy sync flags", zap.Error(err))
	}
	if migrated > 0 {
		log.Info("Migrated legacy sync flags", zap.Int64("orders", migrated))
	}

	// Shared rate-limit status store; falls back to in-memory when Redis is
	// disabled or unreachable
	rateLimitStore := cache.NewRateLimitStore(cfg.Redis, log)

	// WMS client
	limiter := wms.NewRateLimiter(rateLimitStore, wms.RateLimiterConfig{
		HourlyQuota:        cfg.WMS.HourlyQuota,
		BurstQuota:         cfg.WMS.BurstQuota,
		RemainingThreshold: cfg.WMS.RemainingThreshold,
		MaxWait:            cfg.WMS.MaxWait,
		AdaptiveRatio:      cfg.WMS.AdaptiveRatio,
	}, log)

	wmsClient, err := wms.NewClient(wms.ClientConfig{
		BaseURL:      cfg.WMS.BaseURL,
		Token:        cfg.WMS.Token,
		CustomerCode: cfg.WMS.CustomerCode,
		WmsCode:      cfg.WMS.WmsCode,
		Timeout:      cfg.WMS.RequestTimeout,
		MaxRetries:   cfg.WMS.MaxRetries,
	}, limiter, log)
	if err != nil {
		log.Fatal("Failed to create WMS client", zap.Error(err))
	}

	// Application services
	resolver := appsync.NewProductResolver(productRepo, wmsClient, log)
	coordinator := appsync.NewCoordinator(orderRepo, orderStateRepo, methodRepo, resolver, appsync.CoordinatorConfig{
		RemoteCustomerID:        cfg.WMS.RemoteCustomerID,
		DefaultShippingMethodID: cfg.WMS.DefaultShippingMethodID,
		ReprocessCooldown:       cfg.Queue.ReprocessCooldown,
	}, log)
	queueService := appsync.NewQueueService(webhookJobRepo, coordinator, productRepo, orderRepo, appsync.QueueServiceConfig{
		StuckTimeout:       cfg.Queue.StuckTimeout,
		ProcessedRetention: cfg.Queue.ProcessedRetention,
		FailedRetention:    cfg.Queue.FailedRetention,
	}, log)
	orchestrator := appsync.NewOrchestrator(syncJobRepo, coordinator, resolver, wmsClient,
		orderRepo, orderStateRepo, productRepo, cfg.Scheduler.BatchLimit, log)

	// Local order changes nudge an export job; remote-originated saves are
	// suppressed at the repository level and never reach the notifier
	orderRepo.SetNotifier(appsync.NewExportNotifier(orchestrator, log))

	// Background workers
	var workers []worker
	if cfg.Scheduler.Enabled {
		workers = append(workers,
			scheduler.NewQueueWorker(scheduler.QueueWorkerConfig{
				PollInterval: cfg.Scheduler.WorkerInterval,
				BatchSize:    cfg.Queue.BatchSize,
			}, queueService, log),
			scheduler.NewMaintenanceWorker(scheduler.MaintenanceWorkerConfig{
				SweepInterval: cfg.Scheduler.MaintenanceInterval,
			}, queueService, log),
			scheduler.NewBatchWorker(scheduler.BatchWorkerConfig{
				SyncInterval:  cfg.Scheduler.BatchSyncInterval,
				DrainInterval: 10 * time.Second,
				JobTypes:      scheduler.DefaultBatchWorkerConfig().JobTypes,
			}, orchestrator, log),
		)
		for _, w := range workers {
			if err := w.Start(context.Background()); err != nil {
				log.Fatal("Failed to start background worker", zap.Error(err))
			}
		}
	}

	// HTTP server
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.BodyLimit(maxWebhookBodyBytes),
	)

	r := router.NewRouter(engine)
	r.Register(handler.NewWebhookHandler(queueService))
	r.Register(handler.NewSyncHandler(queueService, orchestrator))
	r.Setup()
	r.Healthz(handler.NewSystemHandler().Healthz)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		if err := w.Stop(ctx); err != nil {
			log.Error("Worker did not stop cleanly", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if closer, ok := rateLimitStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("Error closing rate limit store", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// worker is the common lifecycle of the background loops
type worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
