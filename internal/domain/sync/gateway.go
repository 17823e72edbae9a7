package sync

import "context"

// ListOptions narrows remote collection pulls. UpdatedSince is RFC3339 when
// set.
type ListOptions struct {
	Page         int
	Limit        int
	UpdatedSince string
	Status       string
}

// Gateway is the outbound port to the remote WMS API. The transport
// implementation retries transient failures and enforces rate limits behind
// this interface.
type Gateway interface {
	GetOrder(ctx context.Context, orderID string) (*RemoteOrder, error)
	CreateOrder(ctx context.Context, payload map[string]any) (*RemoteOrder, error)
	ListOrders(ctx context.Context, opts ListOptions) ([]RemoteOrder, error)
	ShipOrder(ctx context.Context, orderID string) (*RemoteOrder, error)

	ListStock(ctx context.Context, opts ListOptions) ([]RemoteStockLevel, error)
	ListShipments(ctx context.Context, opts ListOptions) ([]RemoteShipment, error)
	ListInbounds(ctx context.Context, opts ListOptions) ([]RemoteInbound, error)

	GetVariant(ctx context.Context, variantID string) (*RemoteVariant, error)
	FindVariantByArticleCode(ctx context.Context, articleCode string) (*RemoteVariant, error)
	CreateVariant(ctx context.Context, payload map[string]any) (*RemoteVariant, error)
}
