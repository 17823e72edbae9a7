package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// GormShippingMethodRepository implements sync.ShippingMethodRepository
// using a persisted mapping table
type GormShippingMethodRepository struct {
	db *gorm.DB
}

// NewShippingMethodRepository creates a new shipping method mapping repository
func NewShippingMethodRepository(db *gorm.DB) *GormShippingMethodRepository {
	return &GormShippingMethodRepository{db: db}
}

// RemoteID resolves a local shipping method code to the WMS shipping method
// id. An unmapped code is a configuration error, not a transient failure.
func (r *GormShippingMethodRepository) RemoteID(ctx context.Context, localCode string) (string, error) {
	if localCode == "" {
		return "", fmt.Errorf("%w: empty shipping method code", sync.ErrConfiguration)
	}
	var model models.ShippingMethodMappingModel
	err := r.db.WithContext(ctx).Where("local_code = ?", localCode).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no WMS shipping method mapped for %q", sync.ErrConfiguration, localCode)
		}
		return "", fmt.Errorf("resolve shipping method: %w", err)
	}
	return model.RemoteID, nil
}

// Ensure interface compliance
var _ sync.ShippingMethodRepository = (*GormShippingMethodRepository)(nil)
