package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// GormProductRepository implements catalog.Repository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new GORM-based product repository
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) findOne(ctx context.Context, query string, arg string) (*catalog.Product, error) {
	var model models.ProductModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return model.ToDomain(), nil
}

// FindBySKU retrieves a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return r.findOne(ctx, "sku = ?", sku)
}

// FindByBarcode retrieves a product by its barcode
func (r *GormProductRepository) FindByBarcode(ctx context.Context, barcode string) (*catalog.Product, error) {
	if barcode == "" {
		return nil, catalog.ErrProductNotFound
	}
	return r.findOne(ctx, "barcode = ?", barcode)
}

// FindByRemoteID retrieves a product by its WMS variant id
func (r *GormProductRepository) FindByRemoteID(ctx context.Context, remoteID string) (*catalog.Product, error) {
	if remoteID == "" {
		return nil, catalog.ErrProductNotFound
	}
	return r.findOne(ctx, "remote_id = ?", remoteID)
}

// Save upserts a product keyed by SKU
func (r *GormProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	model := &models.ProductModel{}
	model.FromDomain(p)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

// UpdateStockLevel sets the cached stock level for a SKU
func (r *GormProductRepository) UpdateStockLevel(ctx context.Context, sku string, level decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("sku = ?", sku).
		Update("stock_level", level)
	if result.Error != nil {
		return fmt.Errorf("update stock level: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Ensure interface compliance
var _ catalog.Repository = (*GormProductRepository)(nil)
