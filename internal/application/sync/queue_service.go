package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
)

// QueueServiceConfig tunes worker and retention behavior. Zero values fall
// back to the domain defaults.
type QueueServiceConfig struct {
	StuckTimeout       time.Duration
	ProcessedRetention time.Duration
	FailedRetention    time.Duration
}

func (c *QueueServiceConfig) applyDefaults() {
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = sync.DefaultStuckTimeout
	}
	if c.ProcessedRetention <= 0 {
		c.ProcessedRetention = sync.DefaultProcessedRetention
	}
	if c.FailedRetention <= 0 {
		c.FailedRetention = sync.DefaultFailedRetention
	}
}

// QueueService runs the webhook ingestion queue: intake, the worker pass
// that dispatches jobs to the coordinator, health reporting, and the
// maintenance sweeps
type QueueService struct {
	jobs        sync.WebhookJobRepository
	coordinator *Coordinator
	products    catalog.Repository
	orders      order.Repository
	cfg         QueueServiceConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewQueueService creates a webhook queue service
func NewQueueService(
	jobs sync.WebhookJobRepository,
	coordinator *Coordinator,
	products catalog.Repository,
	orders order.Repository,
	cfg QueueServiceConfig,
	logger *zap.Logger,
) *QueueService {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		jobs:        jobs,
		coordinator: coordinator,
		products:    products,
		orders:      orders,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Enqueue accepts an inbound webhook event. A repeated dedup id is a silent
// success; the returned flag reports whether a new job was stored. On a
// duplicate the stored job is returned, not the discarded one.
func (s *QueueService) Enqueue(ctx context.Context, dedupID string, group sync.EventGroup, action sync.EventAction, entityID, externalRef string, payload []byte) (*sync.WebhookJob, bool, error) {
	job, err := sync.NewWebhookJob(dedupID, group, action, entityID, externalRef, payload)
	if err != nil {
		return nil, false, err
	}

	inserted, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		s.logger.Debug("duplicate webhook event ignored", zap.String("dedup_id", dedupID))
		existing, err := s.jobs.FindByDedupID(ctx, dedupID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return job, inserted, nil
}

// ProcessPending is one worker pass: claim up to limit eligible jobs and run
// each through the domain dispatch. A job failure is attempt-counted, never
// fatal; the pass always continues to the next job.
func (s *QueueService) ProcessPending(ctx context.Context, limit int) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	claimed, err := s.jobs.ClaimPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}

	for _, job := range claimed {
		if err := s.processJob(ctx, job); err != nil {
			job.MarkAttemptFailed(err.Error())
			result.AddFailure(fmt.Errorf("job %s: %w", job.DedupID, err))
			s.logger.Warn("webhook job failed",
				zap.String("dedup_id", job.DedupID),
				zap.String("group", string(job.Group)),
				zap.String("action", string(job.Action)),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
		} else {
			job.MarkProcessed()
			result.AddSuccess()
		}

		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("failed to persist job outcome",
				zap.String("dedup_id", job.DedupID),
				zap.Error(err))
		}
	}

	return result, nil
}

// processJob dispatches one claimed job by (group, action)
func (s *QueueService) processJob(ctx context.Context, job *sync.WebhookJob) error {
	switch job.Group {
	case sync.EventGroupOrder:
		return s.handleOrderEvent(ctx, job)
	case sync.EventGroupStock:
		return s.handleStockEvent(ctx, job)
	case sync.EventGroupShipment:
		return s.handleShipmentEvent(ctx, job)
	case sync.EventGroupInbound:
		return s.handleInboundEvent(ctx, job)
	case sync.EventGroupArticle, sync.EventGroupVariant:
		return s.handleVariantEvent(ctx, job)
	default:
		return fmt.Errorf("no handler for event group %q", job.Group)
	}
}

func (s *QueueService) handleOrderEvent(ctx context.Context, job *sync.WebhookJob) error {
	var remote sync.RemoteOrder
	if err := json.Unmarshal(job.Payload, &remote); err != nil {
		return fmt.Errorf("malformed order payload: %w", err)
	}
	if remote.ID == "" {
		remote.ID = job.EntityID
	}

	ref := job.ExternalReference
	if ref == "" {
		ref = remote.ExternalReference
	}

	local, err := s.coordinator.FindByExternalReference(ctx, ref)
	if err != nil {
		return err
	}

	// A not-found lookup during any action falls back to creation
	if local == nil {
		_, err = s.coordinator.CreateFromRemote(ctx, &remote, sync.SourceWebhook)
		return err
	}
	return s.coordinator.UpdateFromRemote(ctx, local, &remote, sync.SourceWebhook)
}

func (s *QueueService) handleStockEvent(ctx context.Context, job *sync.WebhookJob) error {
	var level sync.RemoteStockLevel
	if err := json.Unmarshal(job.Payload, &level); err != nil {
		return fmt.Errorf("malformed stock payload: %w", err)
	}

	err := s.products.UpdateStockLevel(ctx, level.ArticleCode, level.Available)
	if errors.Is(err, catalog.ErrProductNotFound) {
		s.logger.Warn("stock event for unknown article",
			zap.String("article_code", level.ArticleCode))
		return nil
	}
	return err
}

func (s *QueueService) handleShipmentEvent(ctx context.Context, job *sync.WebhookJob) error {
	var shipment sync.RemoteShipment
	if err := json.Unmarshal(job.Payload, &shipment); err != nil {
		return fmt.Errorf("malformed shipment payload: %w", err)
	}

	local, err := s.orders.FindByExternalReference(ctx, shipment.OrderReference)
	if err != nil {
		return err
	}
	if local == nil {
		return fmt.Errorf("shipment %s references unknown order %q", shipment.ID, shipment.OrderReference)
	}

	if job.Action == sync.EventActionShipped {
		if local.ChangeStatus(order.StatusCompleted) {
			if err := s.orders.Save(ctx, local, order.SaveOptions{
				SuppressNotifications: true,
				Source:                string(sync.SourceWebhook),
			}); err != nil {
				return err
			}
		}
	}

	note := fmt.Sprintf("shipment %s (%s): status %s", shipment.ID, shipment.Carrier, shipment.Status)
	if shipment.TrackingCode != "" {
		note += ", tracking " + shipment.TrackingCode
	}
	return s.orders.AddNote(ctx, local.ID, note)
}

func (s *QueueService) handleInboundEvent(ctx context.Context, job *sync.WebhookJob) error {
	var inbound sync.RemoteInbound
	if err := json.Unmarshal(job.Payload, &inbound); err != nil {
		return fmt.Errorf("malformed inbound payload: %w", err)
	}

	// Stock webhooks carry the authoritative levels; the inbound event is
	// informational
	for _, line := range inbound.Lines {
		s.logger.Info("inbound line received",
			zap.String("inbound", inbound.Reference),
			zap.String("article_code", line.ArticleCode),
			zap.String("expected", line.Expected.String()),
			zap.String("received", line.Received.String()))
	}
	return nil
}

func (s *QueueService) handleVariantEvent(ctx context.Context, job *sync.WebhookJob) error {
	var variant sync.RemoteVariant
	if err := json.Unmarshal(job.Payload, &variant); err != nil {
		return fmt.Errorf("malformed variant payload: %w", err)
	}
	if variant.ArticleCode == "" {
		return fmt.Errorf("variant event without article code")
	}

	product, err := s.products.FindBySKU(ctx, variant.ArticleCode)
	if err != nil {
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return err
		}
		product = catalog.NewPlaceholder(variant.ArticleCode, variant.Description)
	}

	product.Barcode = variant.Barcode
	product.RemoteID = variant.ID
	if variant.Description != "" {
		product.Name = variant.Description
	}
	return s.products.Save(ctx, product)
}

// Health reports the queue health surface
func (s *QueueService) Health(ctx context.Context) (*sync.QueueHealth, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	oldest, err := s.jobs.OldestPendingAge(ctx, now)
	if err != nil {
		return nil, err
	}

	stuck, err := s.jobs.CountStuck(ctx, now.Add(-s.cfg.StuckTimeout))
	if err != nil {
		return nil, err
	}

	health := &sync.QueueHealth{
		CountsByStatus:   counts,
		OldestPendingAge: oldest,
		StuckProcessing:  stuck,
		Status:           sync.QueueHealthy,
	}
	if stuck > 0 || counts[sync.WebhookJobStatusFailed] > 0 {
		health.Status = sync.QueueUnhealthy
	}
	return health, nil
}

// ResetStuckJobs sweeps jobs stuck in processing back to pending. Idempotent.
func (s *QueueService) ResetStuckJobs(ctx context.Context) (int64, error) {
	reset, err := s.jobs.ResetStuck(ctx, s.now().Add(-s.cfg.StuckTimeout))
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		s.logger.Warn("stuck webhook jobs reset", zap.Int64("count", reset))
	}
	return reset, nil
}

// ArchiveExpiredFailures archives failed jobs past their retention. Idempotent.
func (s *QueueService) ArchiveExpiredFailures(ctx context.Context) (int64, error) {
	return s.jobs.ArchiveExpiredFailed(ctx, s.now().Add(-s.cfg.FailedRetention))
}

// PurgeProcessed deletes processed and archived jobs past their retention.
// Idempotent.
func (s *QueueService) PurgeProcessed(ctx context.Context) (int64, error) {
	now := s.now()
	return s.jobs.PurgeProcessed(ctx,
		now.Add(-s.cfg.ProcessedRetention),
		now.Add(-s.cfg.FailedRetention))
}

// RetryFailedJobs bulk-resets failed jobs to pending with a fresh attempt
// budget. Idempotent.
func (s *QueueService) RetryFailedJobs(ctx context.Context) (int64, error) {
	retried, err := s.jobs.RetryFailed(ctx)
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		s.logger.Info("failed webhook jobs queued for retry", zap.Int64("count", retried))
	}
	return retried, nil
}
