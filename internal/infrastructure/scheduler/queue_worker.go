package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domainsync "github.com/erp/wms-sync/internal/domain/sync"
)

// QueueProcessor runs one worker pass over the webhook job queue
type QueueProcessor interface {
	ProcessPending(ctx context.Context, limit int) (*domainsync.BatchResult, error)
}

// QueueWorkerConfig holds configuration for the webhook queue worker
type QueueWorkerConfig struct {
	// PollInterval is how often the worker checks for pending jobs
	PollInterval time.Duration

	// BatchSize is the maximum number of jobs claimed per pass
	BatchSize int
}

// DefaultQueueWorkerConfig returns default queue worker configuration
func DefaultQueueWorkerConfig() QueueWorkerConfig {
	return QueueWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    25,
	}
}

// Validate checks the configuration
func (c QueueWorkerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// QueueWorker drains the webhook ingestion queue on a fixed interval
type QueueWorker struct {
	config    QueueWorkerConfig
	processor QueueProcessor
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewQueueWorker creates a new webhook queue worker
func NewQueueWorker(config QueueWorkerConfig, processor QueueProcessor, logger *zap.Logger) *QueueWorker {
	return &QueueWorker{
		config:    config,
		processor: processor,
		logger:    logger,
	}
}

// Start starts the worker loop
func (w *QueueWorker) Start(ctx context.Context) error {
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

	w.logger.Info("Webhook queue worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)
	return nil
}

// Stop stops the worker and waits for the current pass to finish
func (w *QueueWorker) Stop(ctx context.Context) error {
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
		w.logger.Info("Webhook queue worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *QueueWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *QueueWorker) processOnce(ctx context.Context) {
	result, err := w.processor.ProcessPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Webhook queue pass failed", zap.Error(err))
		return
	}
	if result.Processed > 0 {
		w.logger.Info("Webhook queue pass finished",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}
}
