package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the local workflow status of an order aggregate
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ErrLineNotFound indicates the order has no line for the given product
var ErrLineNotFound = errors.New("order: line not found")

// Order is the local representation of a customer order and its line items
type Order struct {
	ID                uuid.UUID
	Number            string
	Status            Status
	ExternalReference string
	RemoteOrderID     string
	RemoteStatus      string
	RemoteRaw         []byte

	CustomerName  string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Street        string
	HouseNumber   string
	PostalCode    string
	City          string
	CountryCode   string
	ShippingMethod string

	RequestedDeliveryDate *time.Time
	Lines                 []Line
	TotalAmount           decimal.Decimal

	// Legacy per-field sync flags, migrated into the unified order sync
	// state record at startup and cleared afterwards
	LegacyExported *bool
	LegacySyncedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is one order line
type Line struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	SKU         string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// NewOrder creates an order aggregate in its initial status
func NewOrder(number, externalRef string) *Order {
	now := time.Now()
	return &Order{
		ID:                uuid.New(),
		Number:            number,
		Status:            StatusPending,
		ExternalReference: externalRef,
		Lines:             make([]Line, 0),
		TotalAmount:       decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// FindLineBySKU returns the line carrying the given SKU
func (o *Order) FindLineBySKU(sku string) (*Line, bool) {
	for i := range o.Lines {
		if o.Lines[i].SKU == sku {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// UpsertLine updates the quantity of an existing line for the product's SKU
// or appends a new line
func (o *Order) UpsertLine(productID uuid.UUID, sku, description string, quantity, unitPrice decimal.Decimal) {
	if line, ok := o.FindLineBySKU(sku); ok {
		line.Quantity = quantity
		o.recalculate()
		return
	}
	o.Lines = append(o.Lines, Line{
		ID:          uuid.New(),
		OrderID:     o.ID,
		ProductID:   productID,
		SKU:         sku,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
	o.recalculate()
}

// ChangeStatus sets the workflow status and reports whether it changed
func (o *Order) ChangeStatus(status Status) bool {
	if o.Status == status {
		return false
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true
}

// SetIdentityFromFullName approximates a billing/shipping identity from a
// single "addressed to" name string: the last word becomes the last name.
func (o *Order) SetIdentityFromFullName(fullName string) {
	o.CustomerName = strings.TrimSpace(fullName)
	parts := strings.Fields(o.CustomerName)
	switch len(parts) {
	case 0:
	case 1:
		o.FirstName = parts[0]
	default:
		o.FirstName = strings.Join(parts[:len(parts)-1], " ")
		o.LastName = parts[len(parts)-1]
	}
}

func (o *Order) recalculate() {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.UnitPrice.Mul(l.Quantity))
	}
	o.TotalAmount = total
	o.UpdatedAt = time.Now()
}

// Note is one append-only audit note on an order
type Note struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Text      string
	CreatedAt time.Time
}

// SaveOptions carries per-call flags for order persistence. Suppressing
// notifications keeps an inbound sync from re-triggering outbound sync.
type SaveOptions struct {
	SuppressNotifications bool
	Source                string
}

// Repository is the persistence port for order aggregates
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByExternalReference is the single authoritative lookup correlating
	// a local order with its WMS counterpart; no fallback heuristics.
	FindByExternalReference(ctx context.Context, ref string) (*Order, error)
	ExistsByExternalReference(ctx context.Context, ref string) (bool, error)
	Save(ctx context.Context, o *Order, opts SaveOptions) error
	AddNote(ctx context.Context, orderID uuid.UUID, text string) error
	FindPendingExport(ctx context.Context, limit int) ([]*Order, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Order, error)
}
