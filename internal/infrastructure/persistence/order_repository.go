package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// OrderNotifier receives change notifications after an order is persisted.
// The coordinator suppresses these per call, via order.SaveOptions, when the
// change originated remotely. That is what keeps inbound sync from
// re-triggering outbound sync.
type OrderNotifier interface {
	OrderChanged(ctx context.Context, o *order.Order, source string)
}

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db       *gorm.DB
	notifier OrderNotifier
}

// NewOrderRepository creates a new GORM-based order repository
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// SetNotifier attaches the change-notification listener. Optional; a nil
// notifier means notifications are a no-op.
func (r *GormOrderRepository) SetNotifier(n OrderNotifier) {
	r.notifier = n
}

// FindByID retrieves an order with its lines
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByExternalReference is the single authoritative lookup correlating a
// local order with its WMS counterpart. No fallback heuristics; nil when
// absent.
func (r *GormOrderRepository) FindByExternalReference(ctx context.Context, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, nil
	}
	var model models.OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("external_reference = ?", ref).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by external reference: %w", err)
	}
	return model.ToDomain(), nil
}

// ExistsByExternalReference reports whether an order with the reference exists
func (r *GormOrderRepository) ExistsByExternalReference(ctx context.Context, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("external_reference = ?", ref).
		Count(&count).Error
	return count > 0, err
}

// Save upserts the order and its lines, then fires the change notification
// unless the caller suppressed it
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order, opts order.SaveOptions) error {
	model := &models.OrderModel{}
	model.FromDomain(o)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := model.Lines
		model.Lines = nil

		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(model).Error; err != nil {
			return err
		}

		// Replace lines wholesale; line identity is not meaningful to the
		// WMS and the aggregate is small
		if err := tx.Where("order_id = ?", model.ID).Delete(&models.OrderLineModel{}).Error; err != nil {
			return err
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	if r.notifier != nil && !opts.SuppressNotifications {
		r.notifier.OrderChanged(ctx, o, opts.Source)
	}

	return nil
}

// AddNote appends an audit note to the order
func (r *GormOrderRepository) AddNote(ctx context.Context, orderID uuid.UUID, text string) error {
	note := &models.OrderNoteModel{
		ID:        uuid.New(),
		OrderID:   orderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("add order note: %w", err)
	}
	return nil
}

// FindPendingExport returns orders that have never been pushed to the WMS
func (r *GormOrderRepository) FindPendingExport(ctx context.Context, limit int) ([]*order.Order, error) {
	var rows []models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("remote_order_id = '' OR remote_order_id IS NULL").
		Where("status NOT IN ?", []string{string(order.StatusCancelled), string(order.StatusCompleted)}).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find orders pending export: %w", err)
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, nil
}

// FindByIDs retrieves multiple orders with their lines
func (r *GormOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*order.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id IN ?", ids).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find orders by ids: %w", err)
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, nil
}

// Ensure interface compliance
var _ order.Repository = (*GormOrderRepository)(nil)
