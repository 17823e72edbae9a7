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

// GormWebhookJobRepository implements sync.WebhookJobRepository using GORM
type GormWebhookJobRepository struct {
	db *gorm.DB
}

// NewWebhookJobRepository creates a new GORM-based webhook job repository
func NewWebhookJobRepository(db *gorm.DB) *GormWebhookJobRepository {
	return &GormWebhookJobRepository{db: db}
}

// Enqueue inserts the job. A dedup id collision is a silent no-op success;
// the caller learns via the return value whether a row was written.
func (r *GormWebhookJobRepository) Enqueue(ctx context.Context, job *sync.WebhookJob) (bool, error) {
	model := models.WebhookJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, fmt.Errorf("enqueue webhook job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClaimPending atomically claims up to limit eligible pending jobs in
// (priority, created_at) order. Jobs whose prerequisite is unsatisfied are
// left pending untouched and simply retried on the next pass.
func (r *GormWebhookJobRepository) ClaimPending(ctx context.Context, limit int) ([]*sync.WebhookJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*sync.WebhookJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// SKIP LOCKED keeps overlapping invocations from claiming the same
		// rows; sqlite (tests) has no row locking
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []models.WebhookJobModel
		if err := query.
			Where("status = ?", string(sync.WebhookJobStatusPending)).
			Order("priority ASC, created_at ASC").
			Limit(limit).
			Find(&candidates).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range candidates {
			job := candidates[i].ToDomain()

			if job.RequiresPrerequisite {
				ok, err := r.prerequisiteSatisfiedTx(tx, job)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}

			if err := tx.Model(&models.WebhookJobModel{}).
				Where("id = ? AND status = ?", job.ID, string(sync.WebhookJobStatusPending)).
				Updates(map[string]interface{}{
					"status":     string(sync.WebhookJobStatusProcessing),
					"updated_at": now,
				}).Error; err != nil {
				return err
			}

			job.Status = sync.WebhookJobStatusProcessing
			job.UpdatedAt = now
			claimed = append(claimed, job)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending webhook jobs: %w", err)
	}

	return claimed, nil
}

// prerequisiteSatisfiedTx checks the prerequisite inside the claiming
// transaction: either a processed prerequisite job exists for the entity, or
// the local-existence bypass applies for orders created via batch sync.
func (r *GormWebhookJobRepository) prerequisiteSatisfiedTx(tx *gorm.DB, job *sync.WebhookJob) (bool, error) {
	prereq := sync.Prerequisite{Group: job.PrerequisiteGroup, Action: job.PrerequisiteAction}

	var count int64
	if err := tx.Model(&models.WebhookJobModel{}).
		Where("entity_id = ? AND event_group = ? AND event_action = ? AND status = ?",
			job.EntityID, string(prereq.Group), string(prereq.Action), string(sync.WebhookJobStatusProcessed)).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	if job.ExternalReference != "" && sync.AllowsLocalExistenceBypass(job.Group, job.Action, prereq) {
		if err := tx.Model(&models.OrderModel{}).
			Where("external_reference = ?", job.ExternalReference).
			Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}

	return false, nil
}

// PrerequisiteSatisfied reports whether a processed job matching the
// prerequisite exists for the entity
func (r *GormWebhookJobRepository) PrerequisiteSatisfied(ctx context.Context, entityID string, prereq sync.Prerequisite) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookJobModel{}).
		Where("entity_id = ? AND event_group = ? AND event_action = ? AND status = ?",
			entityID, string(prereq.Group), string(prereq.Action), string(sync.WebhookJobStatusProcessed)).
		Count(&count).Error
	return count > 0, err
}

// Update persists the current state of the job
func (r *GormWebhookJobRepository) Update(ctx context.Context, job *sync.WebhookJob) error {
	model := models.WebhookJobModelFromDomain(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByDedupID retrieves a job by its dedup id
func (r *GormWebhookJobRepository) FindByDedupID(ctx context.Context, dedupID string) (*sync.WebhookJob, error) {
	var model models.WebhookJobModel
	err := r.db.WithContext(ctx).Where("dedup_id = ?", dedupID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ResetStuck sweeps jobs stuck in PROCESSING since before the cutoff,
// counting the failed attempt and leaving a diagnostic note. A job at the
// attempt cap becomes FAILED instead of cycling back to PENDING. There is no
// live cancellation; timeout-based recovery is the only path back.
func (r *GormWebhookJobRepository) ResetStuck(ctx context.Context, stuckSince time.Time) (int64, error) {
	var swept int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		failed := tx.Model(&models.WebhookJobModel{}).
			Where("status = ? AND updated_at < ? AND attempts + 1 >= max_attempts",
				string(sync.WebhookJobStatusProcessing), stuckSince).
			Updates(map[string]interface{}{
				"status":     string(sync.WebhookJobStatusFailed),
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": "stuck-job sweep: processing exceeded timeout, attempt cap reached",
				"updated_at": now,
			})
		if failed.Error != nil {
			return failed.Error
		}

		reset := tx.Model(&models.WebhookJobModel{}).
			Where("status = ? AND updated_at < ?", string(sync.WebhookJobStatusProcessing), stuckSince).
			Updates(map[string]interface{}{
				"status":     string(sync.WebhookJobStatusPending),
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": "reset by stuck-job sweep: processing exceeded timeout",
				"updated_at": now,
			})
		if reset.Error != nil {
			return reset.Error
		}

		swept = failed.RowsAffected + reset.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reset stuck webhook jobs: %w", err)
	}
	return swept, nil
}

// ArchiveExpiredFailed archives failed jobs that last changed before the cutoff
func (r *GormWebhookJobRepository) ArchiveExpiredFailed(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.WebhookJobModel{}).
		Where("status = ? AND updated_at < ?", string(sync.WebhookJobStatusFailed), before).
		Updates(map[string]interface{}{
			"status":     string(sync.WebhookJobStatusArchived),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// PurgeProcessed deletes processed jobs older than the first cutoff and
// archived jobs older than the second
func (r *GormWebhookJobRepository) PurgeProcessed(ctx context.Context, processedBefore, archivedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("(status = ? AND processed_at < ?) OR (status = ? AND updated_at < ?)",
			string(sync.WebhookJobStatusProcessed), processedBefore,
			string(sync.WebhookJobStatusArchived), archivedBefore).
		Delete(&models.WebhookJobModel{})
	return result.RowsAffected, result.Error
}

// RetryFailed bulk-resets failed jobs to PENDING with a fresh attempt budget
func (r *GormWebhookJobRepository) RetryFailed(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.WebhookJobModel{}).
		Where("status = ?", string(sync.WebhookJobStatusFailed)).
		Updates(map[string]interface{}{
			"status":     string(sync.WebhookJobStatusPending),
			"attempts":   0,
			"last_error": "",
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// CountByStatus returns job counts per status
func (r *GormWebhookJobRepository) CountByStatus(ctx context.Context) (map[sync.WebhookJobStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).Model(&models.WebhookJobModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[sync.WebhookJobStatus]int64, len(results))
	for _, rc := range results {
		counts[sync.WebhookJobStatus(rc.Status)] = rc.Count
	}
	return counts, nil
}

// OldestPendingAge returns how long the oldest pending job has been waiting
func (r *GormWebhookJobRepository) OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var model models.WebhookJobModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(sync.WebhookJobStatusPending)).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return now.Sub(model.CreatedAt), nil
}

// CountStuck counts jobs stuck in PROCESSING since before the cutoff
func (r *GormWebhookJobRepository) CountStuck(ctx context.Context, stuckSince time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookJobModel{}).
		Where("status = ? AND updated_at < ?", string(sync.WebhookJobStatusProcessing), stuckSince).
		Count(&count).Error
	return count, err
}

// Ensure interface compliance
var _ sync.WebhookJobRepository = (*GormWebhookJobRepository)(nil)
