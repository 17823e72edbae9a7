package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/wms-sync/internal/domain/sync"
)

// WebhookJobModel is the persistence model for queued webhook jobs
type WebhookJobModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primary_key"`
	DedupID              string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_webhook_jobs_dedup"`
	EventGroup           string     `gorm:"column:event_group;type:varchar(32);not null;index:idx_webhook_jobs_entity,priority:2"`
	EventAction          string     `gorm:"column:event_action;type:varchar(32);not null;index:idx_webhook_jobs_entity,priority:3"`
	EntityID             string     `gorm:"type:varchar(128);index:idx_webhook_jobs_entity,priority:1"`
	ExternalReference    string     `gorm:"type:varchar(128);index"`
	Payload              []byte     `gorm:"type:jsonb"`
	Priority             int        `gorm:"not null;index:idx_webhook_jobs_dequeue,priority:2"`
	RequiresPrerequisite bool       `gorm:"not null;default:false"`
	PrerequisiteGroup    string     `gorm:"type:varchar(32)"`
	PrerequisiteAction   string     `gorm:"type:varchar(32)"`
	Status               string     `gorm:"type:varchar(16);not null;index:idx_webhook_jobs_dequeue,priority:1"`
	Attempts             int        `gorm:"not null;default:0"`
	MaxAttempts          int        `gorm:"not null;default:3"`
	LastError            string     `gorm:"type:text"`
	ProcessedAt          *time.Time `gorm:"index"`
	CreatedAt            time.Time  `gorm:"not null;index:idx_webhook_jobs_dequeue,priority:3"`
	UpdatedAt            time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WebhookJobModel) TableName() string {
	return "webhook_jobs"
}

// ToDomain converts the persistence model to a domain WebhookJob
func (m *WebhookJobModel) ToDomain() *sync.WebhookJob {
	return &sync.WebhookJob{
		ID:                   m.ID,
		DedupID:              m.DedupID,
		Group:                sync.EventGroup(m.EventGroup),
		Action:               sync.EventAction(m.EventAction),
		EntityID:             m.EntityID,
		ExternalReference:    m.ExternalReference,
		Payload:              m.Payload,
		Priority:             m.Priority,
		RequiresPrerequisite: m.RequiresPrerequisite,
		PrerequisiteGroup:    sync.EventGroup(m.PrerequisiteGroup),
		PrerequisiteAction:   sync.EventAction(m.PrerequisiteAction),
		Status:               sync.WebhookJobStatus(m.Status),
		Attempts:             m.Attempts,
		MaxAttempts:          m.MaxAttempts,
		LastError:            m.LastError,
		ProcessedAt:          m.ProcessedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookJob
func (m *WebhookJobModel) FromDomain(j *sync.WebhookJob) {
	m.ID = j.ID
	m.DedupID = j.DedupID
	m.EventGroup = string(j.Group)
	m.EventAction = string(j.Action)
	m.EntityID = j.EntityID
	m.ExternalReference = j.ExternalReference
	m.Payload = j.Payload
	m.Priority = j.Priority
	m.RequiresPrerequisite = j.RequiresPrerequisite
	m.PrerequisiteGroup = string(j.PrerequisiteGroup)
	m.PrerequisiteAction = string(j.PrerequisiteAction)
	m.Status = string(j.Status)
	m.Attempts = j.Attempts
	m.MaxAttempts = j.MaxAttempts
	m.LastError = j.LastError
	m.ProcessedAt = j.ProcessedAt
	m.CreatedAt = j.CreatedAt
	m.UpdatedAt = j.UpdatedAt
}

// WebhookJobModelFromDomain creates a persistence model from a domain WebhookJob
func WebhookJobModelFromDomain(j *sync.WebhookJob) *WebhookJobModel {
	m := &WebhookJobModel{}
	m.FromDomain(j)
	return m
}

// OrderSyncStateModel is the persistence model for order sync state records
type OrderSyncStateModel struct {
	OrderID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	State           string     `gorm:"type:varchar(32);not null;index"`
	RemoteOrderID   string     `gorm:"type:varchar(128);index"`
	LastProcessedAt *time.Time
	Source          string    `gorm:"type:varchar(16)"`
	ErrorMessage    string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderSyncStateModel) TableName() string {
	return "order_sync_states"
}

// ToDomain converts the persistence model to a domain OrderSyncState
func (m *OrderSyncStateModel) ToDomain() *sync.OrderSyncState {
	return &sync.OrderSyncState{
		OrderID:         m.OrderID,
		State:           sync.OrderSyncStateValue(m.State),
		RemoteOrderID:   m.RemoteOrderID,
		LastProcessedAt: m.LastProcessedAt,
		Source:          sync.ProcessingSource(m.Source),
		ErrorMessage:    m.ErrorMessage,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain OrderSyncState
func (m *OrderSyncStateModel) FromDomain(s *sync.OrderSyncState) {
	m.OrderID = s.OrderID
	m.State = string(s.State)
	m.RemoteOrderID = s.RemoteOrderID
	m.LastProcessedAt = s.LastProcessedAt
	m.Source = string(s.Source)
	m.ErrorMessage = s.ErrorMessage
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// SyncJobModel is the persistence model for batch sync jobs
type SyncJobModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	JobType     string    `gorm:"type:varchar(32);not null;index"`
	Priority    int       `gorm:"not null"`
	Status      string    `gorm:"type:varchar(16);not null;index"`
	Result      []byte    `gorm:"type:jsonb"`
	Error       string    `gorm:"type:text"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob
func (m *SyncJobModel) ToDomain() *sync.SyncJob {
	return &sync.SyncJob{
		ID:          m.ID,
		JobType:     sync.SyncJobType(m.JobType),
		Priority:    m.Priority,
		Status:      sync.SyncJobStatus(m.Status),
		Result:      m.Result,
		Error:       m.Error,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncJob
func (m *SyncJobModel) FromDomain(j *sync.SyncJob) {
	m.ID = j.ID
	m.JobType = string(j.JobType)
	m.Priority = j.Priority
	m.Status = string(j.Status)
	m.Result = j.Result
	m.Error = j.Error
	m.StartedAt = j.StartedAt
	m.CompletedAt = j.CompletedAt
	m.CreatedAt = j.CreatedAt
	m.UpdatedAt = j.UpdatedAt
}

// ShippingMethodMappingModel maps local shipping method codes to WMS
// shipping method ids
type ShippingMethodMappingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	LocalCode string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	RemoteID  string    `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShippingMethodMappingModel) TableName() string {
	return "shipping_method_mappings"
}
