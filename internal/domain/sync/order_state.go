package sync

import (
	"time"

	"github.com/google/uuid"
)

// OrderSyncStateValue is the single-source-of-truth processing state of an
// order aggregate with respect to WMS synchronization
type OrderSyncStateValue string

const (
	OrderStatePending          OrderSyncStateValue = "PENDING"
	OrderStateProcessing       OrderSyncStateValue = "PROCESSING"
	OrderStateExported         OrderSyncStateValue = "EXPORTED"
	OrderStateSyncedFromRemote OrderSyncStateValue = "SYNCED_FROM_REMOTE"
	OrderStateWebhookProcessed OrderSyncStateValue = "WEBHOOK_PROCESSED"
	OrderStateFailed           OrderSyncStateValue = "FAILED"
	OrderStateSkipped          OrderSyncStateValue = "SKIPPED"
)

// ProcessingSource identifies which path last touched the order
type ProcessingSource string

const (
	SourceWebhook ProcessingSource = "webhook"
	SourceBatch   ProcessingSource = "batch"
	SourceManual  ProcessingSource = "manual"
)

// DefaultReprocessCooldown suppresses duplicate reprocessing from overlapping
// triggers after a webhook landed
const DefaultReprocessCooldown = 5 * time.Minute

// OrderSyncState tracks the synchronization status of one order aggregate.
// It is created lazily on first access and never hard-deleted.
type OrderSyncState struct {
	OrderID         uuid.UUID
	State           OrderSyncStateValue
	RemoteOrderID   string
	LastProcessedAt *time.Time
	Source          ProcessingSource
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrderSyncState creates a fresh pending state record for an order
func NewOrderSyncState(orderID uuid.UUID) *OrderSyncState {
	now := time.Now()
	return &OrderSyncState{
		OrderID:   orderID,
		State:     OrderStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ShouldSkipProcessing reports whether the order must not be reprocessed:
// terminal states stay skipped until explicitly reset, and a recent webhook
// result is protected by a cooldown window against overlapping triggers.
func (s *OrderSyncState) ShouldSkipProcessing(now time.Time, cooldown time.Duration) bool {
	switch s.State {
	case OrderStateSyncedFromRemote, OrderStateExported, OrderStateSkipped:
		return true
	case OrderStateWebhookProcessed:
		return s.LastProcessedAt != nil && now.Sub(*s.LastProcessedAt) < cooldown
	default:
		return false
	}
}

// The transition operations below are total, unconditional writes
// (last-writer-wins); the coordinator serializes per-order access.

// MarkExported records a successful outbound export
func (s *OrderSyncState) MarkExported(remoteOrderID string, source ProcessingSource) {
	s.transition(OrderStateExported, source)
	if remoteOrderID != "" {
		s.RemoteOrderID = remoteOrderID
	}
}

// MarkSyncedFromRemote records a batch-triggered inbound sync
func (s *OrderSyncState) MarkSyncedFromRemote(remoteOrderID string, source ProcessingSource) {
	s.transition(OrderStateSyncedFromRemote, source)
	if remoteOrderID != "" {
		s.RemoteOrderID = remoteOrderID
	}
}

// MarkWebhookProcessed records a webhook-triggered inbound sync
func (s *OrderSyncState) MarkWebhookProcessed(remoteOrderID string) {
	s.transition(OrderStateWebhookProcessed, SourceWebhook)
	if remoteOrderID != "" {
		s.RemoteOrderID = remoteOrderID
	}
}

// MarkFailed records a reconciliation failure
func (s *OrderSyncState) MarkFailed(errMsg string, source ProcessingSource) {
	s.transition(OrderStateFailed, source)
	s.ErrorMessage = errMsg
}

// MarkSkipped excludes the order from synchronization until reset
func (s *OrderSyncState) MarkSkipped(source ProcessingSource) {
	s.transition(OrderStateSkipped, source)
}

// ResetToPending clears terminal state so the order becomes eligible again
func (s *OrderSyncState) ResetToPending() {
	s.State = OrderStatePending
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now()
}

func (s *OrderSyncState) transition(state OrderSyncStateValue, source ProcessingSource) {
	now := time.Now()
	s.State = state
	s.Source = source
	s.LastProcessedAt = &now
	s.ErrorMessage = ""
	s.UpdatedAt = now
}
