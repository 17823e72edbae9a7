package sync

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/wms-sync/internal/domain/order"
)

// RemoteOrder is the WMS representation of an order as received in webhook
// payloads and batch pulls
type RemoteOrder struct {
	ID                string            `json:"id"`
	Reference         string            `json:"reference"`
	ExternalReference string            `json:"external_reference"`
	Status            string            `json:"status"`
	AddressedTo       string            `json:"addressed_to"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	Street            string            `json:"street"`
	HouseNumber       string            `json:"house_number"`
	PostalCode        string            `json:"postal_code"`
	City              string            `json:"city"`
	CountryCode       string            `json:"country_code"`
	ShippingMethodID  string            `json:"shipping_method_id"`
	DeliveryDate      string            `json:"delivery_date"`
	OrderLines        []RemoteOrderLine `json:"order_lines"`
}

// RemoteOrderLine is one line of a WMS order
type RemoteOrderLine struct {
	ID          string          `json:"id"`
	ArticleCode string          `json:"article_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	VariantID   string          `json:"variant_id"`
	Barcode     string          `json:"barcode"`
}

// RemoteShipment is the WMS representation of a shipment
type RemoteShipment struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	OrderReference string    `json:"order_reference"`
	Status         string    `json:"status"`
	TrackingCode   string    `json:"tracking_code"`
	TrackingURL    string    `json:"tracking_url"`
	Carrier        string    `json:"carrier"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// RemoteStockLevel is one WMS stock record for a variant
type RemoteStockLevel struct {
	ArticleCode string          `json:"article_code"`
	VariantID   string          `json:"variant_id"`
	Available   decimal.Decimal `json:"available"`
	Physical    decimal.Decimal `json:"physical"`
}

// RemoteInbound is the WMS representation of an inbound (goods receipt)
type RemoteInbound struct {
	ID        string              `json:"id"`
	Reference string              `json:"reference"`
	Status    string              `json:"status"`
	Lines     []RemoteInboundLine `json:"inbound_lines"`
}

// RemoteInboundLine is one received line of an inbound
type RemoteInboundLine struct {
	ArticleCode string          `json:"article_code"`
	Expected    decimal.Decimal `json:"expected"`
	Received    decimal.Decimal `json:"received"`
}

// RemoteVariant is the WMS article variant record used during product
// resolution
type RemoteVariant struct {
	ID          string `json:"id"`
	ArticleCode string `json:"article_code"`
	Description string `json:"description"`
	Barcode     string `json:"barcode"`
	SKU         string `json:"sku"`
}

// remoteStatusTable fixes the mapping of WMS order statuses onto local
// workflow statuses. Unmapped remote statuses map to PROCESSING.
var remoteStatusTable = map[string]order.Status{
	"created":            order.StatusProcessing,
	"plannable":          order.StatusProcessing,
	"planned":            order.StatusProcessing,
	"processing":         order.StatusProcessing,
	"partially_shipped":  order.StatusProcessing,
	"shipped":            order.StatusCompleted,
	"on_hold":            order.StatusOnHold,
	"problem":            order.StatusOnHold,
	"backorder":          order.StatusOnHold,
	"awaiting_documents": order.StatusOnHold,
	"restock":            order.StatusOnHold,
	"invalid_address":    order.StatusOnHold,
	"cancelled":          order.StatusCancelled,
	"invalid":            order.StatusCancelled,
}

// MapRemoteStatus maps a WMS order status to the local workflow status
func MapRemoteStatus(remoteStatus string) order.Status {
	if s, ok := remoteStatusTable[remoteStatus]; ok {
		return s
	}
	return order.StatusProcessing
}
