package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrProductNotFound indicates no product matched the lookup
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is the minimal product projection the sync engine needs for line
// item resolution. Full catalog CRUD lives in the commerce platform.
type Product struct {
	ID          uuid.UUID
	SKU         string
	Name        string
	Barcode     string
	RemoteID    string
	Price       decimal.Decimal
	StockLevel  decimal.Decimal
	Placeholder bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPlaceholder synthesizes a product for an unresolvable remote article
// code so reconciliation can proceed; flagged for later manual review.
func NewPlaceholder(sku, name string) *Product {
	now := time.Now()
	if name == "" {
		name = sku
	}
	return &Product{
		ID:          uuid.New(),
		SKU:         sku,
		Name:        name,
		Price:       decimal.Zero,
		Placeholder: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Repository is the persistence port for minimal product resolution
type Repository interface {
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*Product, error)
	FindByRemoteID(ctx context.Context, remoteID string) (*Product, error)
	Save(ctx context.Context, p *Product) error
	UpdateStockLevel(ctx context.Context, sku string, level decimal.Decimal) error
}
