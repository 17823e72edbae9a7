package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// GormSyncJobRepository implements sync.SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewSyncJobRepository creates a new GORM-based sync job repository
func NewSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// Save persists a new batch job
func (r *GormSyncJobRepository) Save(ctx context.Context, job *sync.SyncJob) error {
	model := &models.SyncJobModel{}
	model.FromDomain(job)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("save sync job: %w", err)
	}
	return nil
}

// Update persists the current state of a batch job
func (r *GormSyncJobRepository) Update(ctx context.Context, job *sync.SyncJob) error {
	model := &models.SyncJobModel{}
	model.FromDomain(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// ClaimNext atomically claims the highest-priority queued batch job, or
// returns nil when the queue is empty
func (r *GormSyncJobRepository) ClaimNext(ctx context.Context) (*sync.SyncJob, error) {
	var claimed *sync.SyncJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var model models.SyncJobModel
		err := query.
			Where("status = ?", string(sync.SyncJobStatusQueued)).
			Order("priority ASC, created_at ASC").
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.SyncJobModel{}).
			Where("id = ? AND status = ?", model.ID, string(sync.SyncJobStatusQueued)).
			Updates(map[string]interface{}{
				"status":     string(sync.SyncJobStatusRunning),
				"started_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = model.ToDomain()
		claimed.Status = sync.SyncJobStatusRunning
		claimed.StartedAt = &now
		claimed.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next sync job: %w", err)
	}

	return claimed, nil
}

// HasQueued reports whether a queued job of the given type exists
func (r *GormSyncJobRepository) HasQueued(ctx context.Context, jobType sync.SyncJobType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).
		Where("job_type = ? AND status = ?", string(jobType), string(sync.SyncJobStatusQueued)).
		Count(&count).Error
	return count > 0, err
}

// Ensure interface compliance
var _ sync.SyncJobRepository = (*GormSyncJobRepository)(nil)
