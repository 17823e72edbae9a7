package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// QueueMaintainer runs the housekeeping sweeps over the webhook job queue
type QueueMaintainer interface {
	ResetStuckJobs(ctx context.Context) (int64, error)
	ArchiveExpiredFailures(ctx context.Context) (int64, error)
	PurgeProcessed(ctx context.Context) (int64, error)
}

// MaintenanceWorkerConfig holds configuration for the maintenance worker
type MaintenanceWorkerConfig struct {
	// SweepInterval is how often the housekeeping sweeps run
	SweepInterval time.Duration
}

// DefaultMaintenanceWorkerConfig returns default maintenance configuration
func DefaultMaintenanceWorkerConfig() MaintenanceWorkerConfig {
	return MaintenanceWorkerConfig{
		SweepInterval: 5 * time.Minute,
	}
}

// Validate checks the configuration
func (c MaintenanceWorkerConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// MaintenanceWorker periodically resets stuck jobs, archives expired
// failures and purges processed jobs past their retention window
type MaintenanceWorker struct {
	config     MaintenanceWorkerConfig
	maintainer QueueMaintainer
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewMaintenanceWorker creates a new queue maintenance worker
func NewMaintenanceWorker(config MaintenanceWorkerConfig, maintainer QueueMaintainer, logger *zap.Logger) *MaintenanceWorker {
	return &MaintenanceWorker{
		config:     config,
		maintainer: maintainer,
		logger:     logger,
	}
}

// Start starts the maintenance loop
func (w *MaintenanceWorker) Start(ctx context.Context) error {
	if err := w.config.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.runLoop(ctx)

	w.logger.Info("Queue maintenance worker started",
		zap.Duration("sweep_interval", w.config.SweepInterval),
	)
	return nil
}

// Stop stops the maintenance loop
func (w *MaintenanceWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Queue maintenance worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *MaintenanceWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs all housekeeping passes; a failing pass does not block the rest
func (w *MaintenanceWorker) sweep(ctx context.Context) {
	if _, err := w.maintainer.ResetStuckJobs(ctx); err != nil {
		w.logger.Error("Stuck job sweep failed", zap.Error(err))
	}
	if _, err := w.maintainer.ArchiveExpiredFailures(ctx); err != nil {
		w.logger.Error("Failed job archive sweep failed", zap.Error(err))
	}
	if _, err := w.maintainer.PurgeProcessed(ctx); err != nil {
		w.logger.Error("Processed job purge failed", zap.Error(err))
	}
}
