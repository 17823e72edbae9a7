package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/erp/wms-sync/internal/application/sync"
	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/interfaces/http/dto"
)

// QueueInspector exposes queue health and the housekeeping sweeps
type QueueInspector interface {
	Health(ctx context.Context) (*sync.QueueHealth, error)
	ResetStuckJobs(ctx context.Context) (int64, error)
	ArchiveExpiredFailures(ctx context.Context) (int64, error)
	PurgeProcessed(ctx context.Context) (int64, error)
	RetryFailedJobs(ctx context.Context) (int64, error)
}

// BatchTrigger runs batch synchronization on demand
type BatchTrigger interface {
	ProcessManualOrderSync(ctx context.Context, orderIDs []uuid.UUID) (*sync.BatchResult, error)
	ProcessCronOrderSync(ctx context.Context, opts appsync.CronSyncOptions) (*sync.BatchResult, error)
	ProcessNextJob(ctx context.Context) (*sync.BatchResult, error)
}

// SyncHandler handles synchronization management endpoints
type SyncHandler struct {
	BaseHandler
	inspector QueueInspector
	trigger   BatchTrigger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(inspector QueueInspector, trigger BatchTrigger) *SyncHandler {
	return &SyncHandler{inspector: inspector, trigger: trigger}
}

// RegisterRoutes registers sync management routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	queue := rg.Group("/sync/queue")
	{
		queue.GET("/health", h.QueueHealth)
		queue.POST("/maintenance", h.RunMaintenance)
	}
	rg.POST("/sync/orders", h.SyncOrders)
	rg.POST("/sync/orders/cron", h.RunCronOrderSync)
	rg.POST("/sync/run", h.RunNextBatchJob)
}

// QueueHealth reports the webhook queue health surface
func (h *SyncHandler) QueueHealth(c *gin.Context) {
	health, err := h.inspector.Health(c.Request.Context())
	if err != nil {
		h.Internal(c, "failed to inspect queue health")
		return
	}
	h.Success(c, health)
}

// RunMaintenance runs all housekeeping sweeps immediately
func (h *SyncHandler) RunMaintenance(c *gin.Context) {
	ctx := c.Request.Context()
	var resp dto.MaintenanceResponse
	var err error

	if resp.StuckReset, err = h.inspector.ResetStuckJobs(ctx); err != nil {
		h.Internal(c, "stuck job sweep failed")
		return
	}
	if resp.FailedArchived, err = h.inspector.ArchiveExpiredFailures(ctx); err != nil {
		h.Internal(c, "failed job archive sweep failed")
		return
	}
	if resp.ProcessedPurge, err = h.inspector.PurgeProcessed(ctx); err != nil {
		h.Internal(c, "processed job purge failed")
		return
	}
	if resp.FailedRetried, err = h.inspector.RetryFailedJobs(ctx); err != nil {
		h.Internal(c, "failed job retry failed")
		return
	}

	h.Success(c, resp)
}

// SyncOrders pushes or refreshes the given orders against the WMS
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	var req dto.ManualSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
	for _, raw := range req.OrderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "invalid order id "+raw)
			return
		}
		orderIDs = append(orderIDs, id)
	}

	result, err := h.trigger.ProcessManualOrderSync(c.Request.Context(), orderIDs)
	if err != nil {
		h.syncError(c, err)
		return
	}
	h.Success(c, batchRunResponse(result, true))
}

// RunCronOrderSync runs the full scheduled order flow (export then import)
// on demand; external schedulers hit this endpoint. The body is optional and
// may narrow the pass to one direction.
func (h *SyncHandler) RunCronOrderSync(c *gin.Context) {
	var req dto.CronSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	result, err := h.trigger.ProcessCronOrderSync(c.Request.Context(), appsync.CronSyncOptions{
		SkipExport: req.SkipExport,
		SkipImport: req.SkipImport,
	})
	if err != nil {
		h.syncError(c, err)
		return
	}
	h.Success(c, batchRunResponse(result, true))
}

// RunNextBatchJob claims and runs the next queued batch sync job
func (h *SyncHandler) RunNextBatchJob(c *gin.Context) {
	result, err := h.trigger.ProcessNextJob(c.Request.Context())
	if err != nil {
		h.syncError(c, err)
		return
	}
	if result == nil {
		h.Success(c, dto.BatchRunResponse{Ran: false})
		return
	}
	h.Success(c, batchRunResponse(result, true))
}

func (h *SyncHandler) syncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sync.ErrConfiguration):
		h.ErrorWithCode(c, dto.ErrCodeConfiguration, err.Error())
	case errors.Is(err, sync.ErrRateLimited):
		h.ErrorWithCode(c, dto.ErrCodeRateLimited, err.Error())
	case errors.Is(err, sync.ErrServer), errors.Is(err, sync.ErrNetwork):
		h.ErrorWithCode(c, dto.ErrCodeUpstream, err.Error())
	default:
		h.Internal(c, err.Error())
	}
}

func batchRunResponse(result *sync.BatchResult, ran bool) dto.BatchRunResponse {
	return dto.BatchRunResponse{
		Ran:        ran,
		Processed:  result.Processed,
		Successful: result.Successful,
		Failed:     result.Failed,
		Errors:     result.Errors,
	}
}
