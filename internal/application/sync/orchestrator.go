package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
)

// DefaultBatchLimit bounds how many items one batch invocation touches
// before enqueuing a continuation
const DefaultBatchLimit = 50

// Orchestrator runs the scheduled batch synchronization flows. Every batch
// self-limits to a fixed number of items and enqueues a continuation job
// instead of looping unbounded, keeping per-invocation runtime predictable.
type Orchestrator struct {
	syncJobs    sync.SyncJobRepository
	coordinator *Coordinator
	resolver    *ProductResolver
	gateway     sync.Gateway
	orders      order.Repository
	states      sync.OrderStateRepository
	products    catalog.Repository
	batchLimit  int
	logger      *zap.Logger
}

// NewOrchestrator creates a batch sync orchestrator
func NewOrchestrator(
	syncJobs sync.SyncJobRepository,
	coordinator *Coordinator,
	resolver *ProductResolver,
	gateway sync.Gateway,
	orders order.Repository,
	states sync.OrderStateRepository,
	products catalog.Repository,
	batchLimit int,
	logger *zap.Logger,
) *Orchestrator {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		syncJobs:    syncJobs,
		coordinator: coordinator,
		resolver:    resolver,
		gateway:     gateway,
		orders:      orders,
		states:      states,
		products:    products,
		batchLimit:  batchLimit,
		logger:      logger,
	}
}

// EnqueueJob queues a batch job of the given type unless one is already
// waiting
func (o *Orchestrator) EnqueueJob(ctx context.Context, jobType sync.SyncJobType) (bool, error) {
	queued, err := o.syncJobs.HasQueued(ctx, jobType)
	if err != nil {
		return false, err
	}
	if queued {
		return false, nil
	}
	if err := o.syncJobs.Save(ctx, sync.NewSyncJob(jobType)); err != nil {
		return false, err
	}
	return true, nil
}

// ProcessNextJob claims and runs the highest-priority queued batch job.
// Returns nil when the queue is empty.
func (o *Orchestrator) ProcessNextJob(ctx context.Context) (*sync.BatchResult, error) {
	job, err := o.syncJobs.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	o.logger.Info("batch sync job started",
		zap.String("job_type", string(job.JobType)),
		zap.String("job_id", job.ID.String()))

	result, runErr := o.runJob(ctx, job)
	if runErr != nil {
		job.Fail(runErr.Error())
		if err := o.syncJobs.Update(ctx, job); err != nil {
			o.logger.Error("failed to persist batch job failure", zap.Error(err))
		}
		return result, runErr
	}

	if raw, err := json.Marshal(result); err == nil {
		job.Complete(raw)
	} else {
		job.Complete(nil)
	}
	if err := o.syncJobs.Update(ctx, job); err != nil {
		o.logger.Error("failed to persist batch job result", zap.Error(err))
	}

	// A full batch means there is likely more to do
	if result.Processed >= o.batchLimit {
		if _, err := o.EnqueueJob(ctx, job.JobType); err != nil {
			o.logger.Warn("failed to enqueue continuation job",
				zap.String("job_type", string(job.JobType)),
				zap.Error(err))
		}
	}

	o.logger.Info("batch sync job finished",
		zap.String("job_type", string(job.JobType)),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job *sync.SyncJob) (*sync.BatchResult, error) {
	switch job.JobType {
	case sync.SyncJobTypeOrderExport:
		return o.runOrderExport(ctx)
	case sync.SyncJobTypeOrderImport:
		return o.runOrderImport(ctx)
	case sync.SyncJobTypeStock:
		return o.runStockSync(ctx)
	case sync.SyncJobTypeShipments:
		return o.runShipmentSync(ctx)
	case sync.SyncJobTypeInbounds:
		return o.runInboundSync(ctx)
	default:
		return &sync.BatchResult{}, fmt.Errorf("unknown batch job type %q", job.JobType)
	}
}

// CronSyncOptions narrows a scheduled order sync pass to one direction
type CronSyncOptions struct {
	SkipExport bool
	SkipImport bool
}

// ProcessCronOrderSync is the scheduled order flow: export unexported local
// orders, then pull recent remote changes back in
func (o *Orchestrator) ProcessCronOrderSync(ctx context.Context, opts CronSyncOptions) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	if !opts.SkipExport {
		exported, err := o.runOrderExport(ctx)
		if exported != nil {
			result.Merge(*exported)
		}
		if err != nil {
			return result, err
		}
	}

	if !opts.SkipImport {
		imported, err := o.runOrderImport(ctx)
		if imported != nil {
			result.Merge(*imported)
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// ProcessManualOrderSync pushes or refreshes the given orders on demand
func (o *Orchestrator) ProcessManualOrderSync(ctx context.Context, orderIDs []uuid.UUID) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	orders, err := o.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for _, local := range orders {
		if local.RemoteOrderID == "" {
			if err := o.exportOrder(ctx, local, sync.SourceManual); err != nil {
				result.AddFailure(fmt.Errorf("order %s: %w", local.Number, err))
				continue
			}
			result.AddSuccess()
			continue
		}

		remote, err := o.gateway.GetOrder(ctx, local.RemoteOrderID)
		if err != nil {
			result.AddFailure(fmt.Errorf("order %s: %w", local.Number, err))
			continue
		}
		if err := o.coordinator.UpdateFromRemote(ctx, local, remote, sync.SourceManual); err != nil {
			result.AddFailure(err)
			continue
		}
		result.AddSuccess()
	}

	return result, nil
}

// runOrderExport pushes local orders that have never reached the WMS
func (o *Orchestrator) runOrderExport(ctx context.Context) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	pending, err := o.orders.FindPendingExport(ctx, o.batchLimit)
	if err != nil {
		return result, err
	}

	for _, local := range pending {
		if err := o.exportOrder(ctx, local, sync.SourceBatch); err != nil {
			// Missing configuration will not heal by retrying other orders
			if errors.Is(err, sync.ErrConfiguration) {
				result.AddFailure(fmt.Errorf("order %s: %w", local.Number, err))
				return result, err
			}
			result.AddFailure(fmt.Errorf("order %s: %w", local.Number, err))
			continue
		}
		result.AddSuccess()
	}

	return result, nil
}

func (o *Orchestrator) exportOrder(ctx context.Context, local *order.Order, source sync.ProcessingSource) error {
	payload, err := o.coordinator.TransformToRemote(ctx, local)
	if err != nil {
		return err
	}

	remote, err := o.gateway.CreateOrder(ctx, payload)
	if err != nil {
		return err
	}

	local.RemoteOrderID = remote.ID
	local.RemoteStatus = remote.Status
	if err := o.orders.Save(ctx, local, order.SaveOptions{
		SuppressNotifications: true,
		Source:                string(source),
	}); err != nil {
		return err
	}

	state, err := o.states.Get(ctx, local.ID)
	if err != nil {
		return err
	}
	state.MarkExported(remote.ID, source)
	return o.states.Save(ctx, state)
}

// runOrderImport pulls recently updated WMS orders and reconciles them
func (o *Orchestrator) runOrderImport(ctx context.Context) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	since := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	remotes, err := o.gateway.ListOrders(ctx, sync.ListOptions{
		Limit:        o.batchLimit,
		UpdatedSince: since,
	})
	if err != nil {
		return result, err
	}

	for i := range remotes {
		remote := &remotes[i]
		ref := remote.ExternalReference
		if ref == "" {
			ref = remote.Reference
		}

		local, err := o.coordinator.FindByExternalReference(ctx, ref)
		if err != nil {
			result.AddFailure(err)
			continue
		}

		if local == nil {
			if _, err := o.coordinator.CreateFromRemote(ctx, remote, sync.SourceBatch); err != nil {
				result.AddFailure(err)
				continue
			}
			result.AddSuccess()
			continue
		}

		// Overlapping triggers: a webhook may have just applied this change
		skip, err := o.coordinator.ShouldSkip(ctx, local.ID)
		if err != nil {
			result.AddFailure(err)
			continue
		}
		if skip {
			continue
		}

		if err := o.coordinator.UpdateFromRemote(ctx, local, remote, sync.SourceBatch); err != nil {
			result.AddFailure(err)
			continue
		}
		result.AddSuccess()
	}

	return result, nil
}

// runStockSync pulls WMS stock levels into the local product projection
func (o *Orchestrator) runStockSync(ctx context.Context) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	levels, err := o.gateway.ListStock(ctx, sync.ListOptions{Limit: o.batchLimit})
	if err != nil {
		return result, err
	}

	for _, level := range levels {
		err := o.products.UpdateStockLevel(ctx, level.ArticleCode, level.Available)
		if errors.Is(err, catalog.ErrProductNotFound) {
			o.logger.Debug("stock level for unknown article",
				zap.String("article_code", level.ArticleCode))
			continue
		}
		if err != nil {
			result.AddFailure(fmt.Errorf("stock %s: %w", level.ArticleCode, err))
			continue
		}
		result.AddSuccess()
	}

	return result, nil
}

// runShipmentSync applies recent WMS shipments to their orders
func (o *Orchestrator) runShipmentSync(ctx context.Context) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	shipments, err := o.gateway.ListShipments(ctx, sync.ListOptions{Limit: o.batchLimit})
	if err != nil {
		return result, err
	}

	for _, shipment := range shipments {
		local, err := o.orders.FindByExternalReference(ctx, shipment.OrderReference)
		if err != nil {
			result.AddFailure(err)
			continue
		}
		if local == nil {
			o.logger.Debug("shipment for unknown order",
				zap.String("order_reference", shipment.OrderReference))
			continue
		}

		note := fmt.Sprintf("shipment %s (%s): status %s", shipment.ID, shipment.Carrier, shipment.Status)
		if shipment.TrackingCode != "" {
			note += ", tracking " + shipment.TrackingCode
		}
		if err := o.orders.AddNote(ctx, local.ID, note); err != nil {
			result.AddFailure(err)
			continue
		}
		result.AddSuccess()
	}

	return result, nil
}

// runInboundSync records received WMS inbound lines
func (o *Orchestrator) runInboundSync(ctx context.Context) (*sync.BatchResult, error) {
	result := &sync.BatchResult{}

	inbounds, err := o.gateway.ListInbounds(ctx, sync.ListOptions{Limit: o.batchLimit})
	if err != nil {
		return result, err
	}

	for _, inbound := range inbounds {
		for _, line := range inbound.Lines {
			o.logger.Info("inbound line received",
				zap.String("inbound", inbound.Reference),
				zap.String("article_code", line.ArticleCode),
				zap.String("received", line.Received.String()))
		}
		result.AddSuccess()
	}

	return result, nil
}
