package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// GormOrderStateRepository implements sync.OrderStateRepository using GORM
type GormOrderStateRepository struct {
	db *gorm.DB
}

// NewOrderStateRepository creates a new GORM-based order state repository
func NewOrderStateRepository(db *gorm.DB) *GormOrderStateRepository {
	return &GormOrderStateRepository{db: db}
}

// Get returns the state record for the order, creating a pending record
// lazily on first access
func (r *GormOrderStateRepository) Get(ctx context.Context, orderID uuid.UUID) (*sync.OrderSyncState, error) {
	var model models.OrderSyncStateModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load order sync state: %w", err)
	}

	state := sync.NewOrderSyncState(orderID)
	if err := r.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save upserts the state record (last-writer-wins)
func (r *GormOrderStateRepository) Save(ctx context.Context, state *sync.OrderSyncState) error {
	model := &models.OrderSyncStateModel{}
	model.FromDomain(state)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("save order sync state: %w", err)
	}
	return nil
}

// MigrateLegacyFlags converts legacy per-order sync columns into unified
// state records, then clears the legacy fields. Run once at startup; safe to
// re-run (orders with cleared flags are not selected again).
func (r *GormOrderStateRepository) MigrateLegacyFlags(ctx context.Context) (int64, error) {
	var migrated int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orders []models.OrderModel
		if err := tx.
			Where("legacy_exported IS NOT NULL OR legacy_synced_at IS NOT NULL").
			Find(&orders).Error; err != nil {
			return err
		}

		for i := range orders {
			o := &orders[i]
			state := sync.NewOrderSyncState(o.ID)
			state.RemoteOrderID = o.RemoteOrderID

			switch {
			case o.LegacyExported != nil && *o.LegacyExported:
				state.MarkExported(o.RemoteOrderID, sync.SourceBatch)
			case o.LegacySyncedAt != nil:
				state.MarkSyncedFromRemote(o.RemoteOrderID, sync.SourceBatch)
				state.LastProcessedAt = o.LegacySyncedAt
			}

			model := &models.OrderSyncStateModel{}
			model.FromDomain(state)
			if err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "order_id"}},
					DoNothing: true,
				}).
				Create(model).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.OrderModel{}).
				Where("id = ?", o.ID).
				Updates(map[string]interface{}{
					"legacy_exported":  nil,
					"legacy_synced_at": nil,
				}).Error; err != nil {
				return err
			}
			migrated++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("migrate legacy sync flags: %w", err)
	}

	return migrated, nil
}

// Ensure interface compliance
var _ sync.OrderStateRepository = (*GormOrderStateRepository)(nil)
