package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/domain/order"
)

// OrderModel is the persistence model for order aggregates
type OrderModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	Number            string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status            string    `gorm:"type:varchar(16);not null;index"`
	ExternalReference string    `gorm:"type:varchar(128);uniqueIndex:idx_orders_external_ref"`
	RemoteOrderID     string    `gorm:"type:varchar(128);index"`
	RemoteStatus      string    `gorm:"type:varchar(32)"`
	RemoteRaw         []byte    `gorm:"type:jsonb"`

	CustomerName   string `gorm:"type:varchar(255)"`
	FirstName      string `gorm:"type:varchar(128)"`
	LastName       string `gorm:"type:varchar(128)"`
	Email          string `gorm:"type:varchar(255)"`
	Phone          string `gorm:"type:varchar(64)"`
	Street         string `gorm:"type:varchar(255)"`
	HouseNumber    string `gorm:"type:varchar(32)"`
	PostalCode     string `gorm:"type:varchar(32)"`
	City           string `gorm:"type:varchar(128)"`
	CountryCode    string `gorm:"type:varchar(2)"`
	ShippingMethod string `gorm:"type:varchar(64)"`

	RequestedDeliveryDate *time.Time
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	// Legacy per-field sync flags, migrated into order_sync_states at
	// startup and cleared afterwards
	LegacyExported *bool      `gorm:"column:legacy_exported"`
	LegacySyncedAt *time.Time `gorm:"column:legacy_synced_at"`

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel is the persistence model for order lines
type OrderLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	SKU         string          `gorm:"type:varchar(64);not null;index"`
	Description string          `gorm:"type:varchar(255)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:                    m.ID,
		Number:                m.Number,
		Status:                order.Status(m.Status),
		ExternalReference:     m.ExternalReference,
		RemoteOrderID:         m.RemoteOrderID,
		RemoteStatus:          m.RemoteStatus,
		RemoteRaw:             m.RemoteRaw,
		CustomerName:          m.CustomerName,
		FirstName:             m.FirstName,
		LastName:              m.LastName,
		Email:                 m.Email,
		Phone:                 m.Phone,
		Street:                m.Street,
		HouseNumber:           m.HouseNumber,
		PostalCode:            m.PostalCode,
		City:                  m.City,
		CountryCode:           m.CountryCode,
		ShippingMethod:        m.ShippingMethod,
		RequestedDeliveryDate: m.RequestedDeliveryDate,
		TotalAmount:           m.TotalAmount,
		LegacyExported:        m.LegacyExported,
		LegacySyncedAt:        m.LegacySyncedAt,
		Lines:                 make([]order.Line, 0, len(m.Lines)),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	for _, lm := range m.Lines {
		o.Lines = append(o.Lines, order.Line{
			ID:          lm.ID,
			OrderID:     lm.OrderID,
			ProductID:   lm.ProductID,
			SKU:         lm.SKU,
			Description: lm.Description,
			Quantity:    lm.Quantity,
			UnitPrice:   lm.UnitPrice,
		})
	}
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.Number = o.Number
	m.Status = string(o.Status)
	m.ExternalReference = o.ExternalReference
	m.RemoteOrderID = o.RemoteOrderID
	m.RemoteStatus = o.RemoteStatus
	m.RemoteRaw = o.RemoteRaw
	m.CustomerName = o.CustomerName
	m.FirstName = o.FirstName
	m.LastName = o.LastName
	m.Email = o.Email
	m.Phone = o.Phone
	m.Street = o.Street
	m.HouseNumber = o.HouseNumber
	m.PostalCode = o.PostalCode
	m.City = o.City
	m.CountryCode = o.CountryCode
	m.ShippingMethod = o.ShippingMethod
	m.RequestedDeliveryDate = o.RequestedDeliveryDate
	m.TotalAmount = o.TotalAmount
	m.LegacyExported = o.LegacyExported
	m.LegacySyncedAt = o.LegacySyncedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	m.Lines = make([]OrderLineModel, 0, len(o.Lines))
	for _, l := range o.Lines {
		m.Lines = append(m.Lines, OrderLineModel{
			ID:          l.ID,
			OrderID:     o.ID,
			ProductID:   l.ProductID,
			SKU:         l.SKU,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
}

// OrderNoteModel is the persistence model for append-only order audit notes
type OrderNoteModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderNoteModel) TableName() string {
	return "order_notes"
}

// ProductModel is the persistence model for the minimal product projection
type ProductModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU         string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Barcode     string          `gorm:"type:varchar(64);index"`
	RemoteID    string          `gorm:"type:varchar(128);index"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockLevel  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Placeholder bool            `gorm:"not null;default:false"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:          m.ID,
		SKU:         m.SKU,
		Name:        m.Name,
		Barcode:     m.Barcode,
		RemoteID:    m.RemoteID,
		Price:       m.Price,
		StockLevel:  m.StockLevel,
		Placeholder: m.Placeholder,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.SKU = p.SKU
	m.Name = p.Name
	m.Barcode = p.Barcode
	m.RemoteID = p.RemoteID
	m.Price = p.Price
	m.StockLevel = p.StockLevel
	m.Placeholder = p.Placeholder
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
