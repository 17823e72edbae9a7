package wms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erp/wms-sync/internal/domain/sync"
)

// listEnvelope is the WMS collection response shape
type listEnvelope[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
}

// itemEnvelope is the WMS single-resource response shape
type itemEnvelope[T any] struct {
	Data T `json:"data"`
}

func requestItem[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	raw, err := c.Request(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var envelope itemEnvelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return &envelope.Data, nil
}

func requestList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	raw, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var envelope listEnvelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return envelope.Data, nil
}

func listValues(o sync.ListOptions) url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.UpdatedSince != "" {
		q.Set("updated_since", o.UpdatedSince)
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	return q
}

// GetOrder fetches one WMS order by id
func (c *Client) GetOrder(ctx context.Context, orderID string) (*sync.RemoteOrder, error) {
	return requestItem[sync.RemoteOrder](ctx, c, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
}

// CreateOrder submits a new order to the WMS and returns the created record
func (c *Client) CreateOrder(ctx context.Context, payload map[string]any) (*sync.RemoteOrder, error) {
	return requestItem[sync.RemoteOrder](ctx, c, http.MethodPost, "/orders", payload)
}

// ListOrders pulls a page of WMS orders
func (c *Client) ListOrders(ctx context.Context, opts sync.ListOptions) ([]sync.RemoteOrder, error) {
	return requestList[sync.RemoteOrder](ctx, c, "/orders", listValues(opts))
}

// ShipOrder asks the WMS to release an order for shipping
func (c *Client) ShipOrder(ctx context.Context, orderID string) (*sync.RemoteOrder, error) {
	return requestItem[sync.RemoteOrder](ctx, c, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/ship", nil)
}

// ListStock pulls a page of WMS stock levels
func (c *Client) ListStock(ctx context.Context, opts sync.ListOptions) ([]sync.RemoteStockLevel, error) {
	return requestList[sync.RemoteStockLevel](ctx, c, "/stock", listValues(opts))
}

// ListShipments pulls a page of WMS shipments
func (c *Client) ListShipments(ctx context.Context, opts sync.ListOptions) ([]sync.RemoteShipment, error) {
	return requestList[sync.RemoteShipment](ctx, c, "/shipments", listValues(opts))
}

// ListInbounds pulls a page of WMS inbounds
func (c *Client) ListInbounds(ctx context.Context, opts sync.ListOptions) ([]sync.RemoteInbound, error) {
	return requestList[sync.RemoteInbound](ctx, c, "/inbounds", listValues(opts))
}

// GetVariant fetches one WMS article variant by id
func (c *Client) GetVariant(ctx context.Context, variantID string) (*sync.RemoteVariant, error) {
	return requestItem[sync.RemoteVariant](ctx, c, http.MethodGet, "/variants/"+url.PathEscape(variantID), nil)
}

// FindVariantByArticleCode looks a variant up by its article code, returning
// nil when the WMS knows no such article
func (c *Client) FindVariantByArticleCode(ctx context.Context, articleCode string) (*sync.RemoteVariant, error) {
	q := url.Values{}
	q.Set("article_code", articleCode)
	variants, err := requestList[sync.RemoteVariant](ctx, c, "/variants", q)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, nil
	}
	return &variants[0], nil
}

// CreateVariant registers a new article variant on the WMS
func (c *Client) CreateVariant(ctx context.Context, payload map[string]any) (*sync.RemoteVariant, error) {
	return requestItem[sync.RemoteVariant](ctx, c, http.MethodPost, "/variants", payload)
}

// Ensure interface compliance
var _ sync.Gateway = (*Client)(nil)
