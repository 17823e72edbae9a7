package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domainsync "github.com/erp/wms-sync/internal/domain/sync"
)

// BatchRunner enqueues and executes batch synchronization jobs
type BatchRunner interface {
	EnqueueJob(ctx context.Context, jobType domainsync.SyncJobType) (bool, error)
	ProcessNextJob(ctx context.Context) (*domainsync.BatchResult, error)
}

// BatchWorkerConfig holds configuration for the batch sync worker
type BatchWorkerConfig struct {
	// SyncInterval is how often the full set of sync jobs is enqueued
	SyncInterval time.Duration

	// DrainInterval is how often the worker claims the next queued job
	DrainInterval time.Duration

	// JobTypes is the set of jobs scheduled each interval, in queue
	// priority order
	JobTypes []domainsync.SyncJobType
}

// DefaultBatchWorkerConfig returns default batch worker configuration
func DefaultBatchWorkerConfig() BatchWorkerConfig {
	return BatchWorkerConfig{
		SyncInterval:  15 * time.Minute,
		DrainInterval: 10 * time.Second,
		JobTypes: []domainsync.SyncJobType{
			domainsync.SyncJobTypeOrderExport,
			domainsync.SyncJobTypeOrderImport,
			domainsync.SyncJobTypeShipments,
			domainsync.SyncJobTypeStock,
			domainsync.SyncJobTypeInbounds,
		},
	}
}

// Validate checks the configuration
func (c BatchWorkerConfig) Validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", ErrInvalidConfig)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("%w: drain interval must be positive", ErrInvalidConfig)
	}
	if len(c.JobTypes) == 0 {
		return fmt.Errorf("%w: at least one job type is required", ErrInvalidConfig)
	}
	return nil
}

// BatchWorker schedules the recurring WMS batch jobs and drains the job
// queue one job at a time. Continuation jobs enqueued by a full batch are
// picked up by the same drain loop.
type BatchWorker struct {
	config BatchWorkerConfig
	runner BatchRunner
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBatchWorker creates a new batch sync worker
func NewBatchWorker(config BatchWorkerConfig, runner BatchRunner, logger *zap.Logger) *BatchWorker {
	return &BatchWorker{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start starts the scheduling and drain loops
func (w *BatchWorker) Start(ctx context.Context) error {
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

	w.wg.Add(2)
	go w.scheduleLoop(ctx)
	go w.drainLoop(ctx)

	w.logger.Info("Batch sync worker started",
		zap.Duration("sync_interval", w.config.SyncInterval),
		zap.Duration("drain_interval", w.config.DrainInterval),
		zap.Int("job_types", len(w.config.JobTypes)),
	)
	return nil
}

// Stop stops both loops and waits for the running job to finish
func (w *BatchWorker) Stop(ctx context.Context) error {
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
		w.logger.Info("Batch sync worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerSync enqueues the configured job set immediately
func (w *BatchWorker) TriggerSync(ctx context.Context) {
	for _, jobType := range w.config.JobTypes {
		enqueued, err := w.runner.EnqueueJob(ctx, jobType)
		if err != nil {
			w.logger.Error("Failed to enqueue batch job",
				zap.String("job_type", string(jobType)),
				zap.Error(err))
			continue
		}
		if !enqueued {
			w.logger.Debug("Batch job already queued",
				zap.String("job_type", string(jobType)))
		}
	}
}

func (w *BatchWorker) scheduleLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.TriggerSync(ctx)
		}
	}
}

func (w *BatchWorker) drainLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce runs queued jobs until the queue is empty or the context ends
func (w *BatchWorker) drainOnce(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.runner.ProcessNextJob(ctx)
		if err != nil {
			w.logger.Error("Batch sync job failed", zap.Error(err))
			return
		}
		if result == nil {
			return
		}
	}
}
