package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/interfaces/http/dto"
)

// WebhookQueue accepts inbound webhook events for asynchronous processing
type WebhookQueue interface {
	Enqueue(ctx context.Context, dedupID string, group sync.EventGroup, action sync.EventAction, entityID, externalRef string, payload []byte) (*sync.WebhookJob, bool, error)
}

// WebhookHandler handles WMS webhook intake
type WebhookHandler struct {
	BaseHandler
	queue WebhookQueue
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(queue WebhookQueue) *WebhookHandler {
	return &WebhookHandler{queue: queue}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/wms", h.Receive)
}

// Receive accepts a WMS webhook event. Processing is asynchronous; a
// repeated dedup id is acknowledged as a success so the WMS stops retrying.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req dto.WebhookEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	job, inserted, err := h.queue.Enqueue(c.Request.Context(),
		req.DedupID,
		sync.EventGroup(req.Group),
		sync.EventAction(req.Action),
		req.EntityID,
		req.ExternalReference,
		req.Payload,
	)
	if err != nil {
		h.Internal(c, "failed to enqueue webhook event")
		return
	}

	h.Success(c, dto.WebhookEventResponse{
		JobID:     job.ID.String(),
		Duplicate: !inserted,
		Priority:  job.Priority,
	})
}
