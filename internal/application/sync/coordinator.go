package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
)

// NotificationSuspender is the legacy event-bus hook. Saves carry their own
// suppression bit; this exists only for buses that cannot honor it per call.
// Implementations must tolerate Resume without a prior Suspend.
type NotificationSuspender interface {
	Suspend(orderID uuid.UUID)
	Resume(orderID uuid.UUID)
}

// CoordinatorConfig carries the account-level sync configuration
type CoordinatorConfig struct {
	RemoteCustomerID        string
	DefaultShippingMethodID string
	ReprocessCooldown       time.Duration
}

// Coordinator applies remote WMS order data to local aggregates and builds
// outbound payloads. Inbound saves are made with notifications suppressed so
// a remote-originated change never re-triggers outbound sync.
type Coordinator struct {
	orders    order.Repository
	states    sync.OrderStateRepository
	methods   sync.ShippingMethodRepository
	resolver  *ProductResolver
	suspender NotificationSuspender
	cfg       CoordinatorConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator creates an order synchronization coordinator
func NewCoordinator(
	orders order.Repository,
	states sync.OrderStateRepository,
	methods sync.ShippingMethodRepository,
	resolver *ProductResolver,
	cfg CoordinatorConfig,
	logger *zap.Logger,
) *Coordinator {
	if cfg.ReprocessCooldown <= 0 {
		cfg.ReprocessCooldown = sync.DefaultReprocessCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		orders:   orders,
		states:   states,
		methods:  methods,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotificationSuspender attaches the legacy bus hook. Optional.
func (c *Coordinator) SetNotificationSuspender(s NotificationSuspender) {
	c.suspender = s
}

// FindByExternalReference is the single authoritative local lookup for a WMS
// order reference
func (c *Coordinator) FindByExternalReference(ctx context.Context, ref string) (*order.Order, error) {
	return c.orders.FindByExternalReference(ctx, ref)
}

// ShouldSkip reports whether the order's sync state suppresses reprocessing
// right now (terminal states, or a webhook landed within the cooldown)
func (c *Coordinator) ShouldSkip(ctx context.Context, orderID uuid.UUID) (bool, error) {
	state, err := c.states.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	return state.ShouldSkipProcessing(c.now(), c.cfg.ReprocessCooldown), nil
}

// UpdateFromRemote reconciles a local order against its WMS representation:
// line items, mapped status, remote metadata, audit note, sync state. The
// save is suppressed so the inbound change does not echo back out; on the
// legacy bus path the suspender is re-engaged on every exit, including panic.
func (c *Coordinator) UpdateFromRemote(ctx context.Context, o *order.Order, remote *sync.RemoteOrder, source sync.ProcessingSource) error {
	if c.suspender != nil {
		c.suspender.Suspend(o.ID)
		defer c.suspender.Resume(o.ID)
	}

	if err := c.applyRemote(ctx, o, remote, source); err != nil {
		c.markFailed(ctx, o.ID, err, source)
		return fmt.Errorf("%w: order %s: %v", sync.ErrReconciliation, o.Number, err)
	}
	return nil
}

func (c *Coordinator) applyRemote(ctx context.Context, o *order.Order, remote *sync.RemoteOrder, source sync.ProcessingSource) error {
	if err := c.reconcileLines(ctx, o, remote.OrderLines); err != nil {
		return err
	}

	mapped := sync.MapRemoteStatus(remote.Status)
	previousRemote := o.RemoteStatus
	statusChanged := o.ChangeStatus(mapped)

	o.RemoteOrderID = remote.ID
	o.RemoteStatus = remote.Status
	if raw, err := json.Marshal(remote); err == nil {
		o.RemoteRaw = raw
	}

	if err := c.orders.Save(ctx, o, order.SaveOptions{
		SuppressNotifications: true,
		Source:                string(source),
	}); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	if statusChanged {
		note := fmt.Sprintf("warehouse status changed: %s -> %s (local %s)", previousRemote, remote.Status, mapped)
		if err := c.orders.AddNote(ctx, o.ID, note); err != nil {
			return fmt.Errorf("append audit note: %w", err)
		}
		c.logger.Info("order status updated from warehouse",
			zap.String("order", o.Number),
			zap.String("remote_status", remote.Status),
			zap.String("local_status", string(mapped)))
	}

	state, err := c.states.Get(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load sync state: %w", err)
	}
	if source == sync.SourceWebhook {
		state.MarkWebhookProcessed(remote.ID)
	} else {
		state.MarkSyncedFromRemote(remote.ID, source)
	}
	if err := c.states.Save(ctx, state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}

	return nil
}

// reconcileLines updates quantities on matching lines and appends lines for
// remote articles the order does not carry yet
func (c *Coordinator) reconcileLines(ctx context.Context, o *order.Order, lines []sync.RemoteOrderLine) error {
	for _, line := range lines {
		product, err := c.resolver.Resolve(ctx, line)
		if err != nil {
			return fmt.Errorf("resolve line %s: %w", line.ArticleCode, err)
		}
		o.UpsertLine(product.ID, product.SKU, line.Description, line.Quantity, product.Price)
	}
	return nil
}

// CreateFromRemote builds a new local order aggregate from a WMS order. Used
// for created events and for not-found lookups during any other action.
func (c *Coordinator) CreateFromRemote(ctx context.Context, remote *sync.RemoteOrder, source sync.ProcessingSource) (*order.Order, error) {
	ref := remote.ExternalReference
	if ref == "" {
		ref = remote.Reference
	}
	number := remote.Reference
	if number == "" {
		number = ref
	}

	o := order.NewOrder(number, ref)
	o.SetIdentityFromFullName(remote.AddressedTo)
	o.Email = remote.Email
	o.Phone = remote.Phone
	o.Street = remote.Street
	o.HouseNumber = remote.HouseNumber
	o.PostalCode = remote.PostalCode
	o.City = remote.City
	o.CountryCode = remote.CountryCode
	o.Status = sync.MapRemoteStatus(remote.Status)

	if err := c.reconcileLines(ctx, o, remote.OrderLines); err != nil {
		return nil, fmt.Errorf("%w: create order %s: %v", sync.ErrReconciliation, ref, err)
	}

	o.RemoteOrderID = remote.ID
	o.RemoteStatus = remote.Status
	if raw, err := json.Marshal(remote); err == nil {
		o.RemoteRaw = raw
	}

	if err := c.orders.Save(ctx, o, order.SaveOptions{
		SuppressNotifications: true,
		Source:                string(source),
	}); err != nil {
		return nil, fmt.Errorf("save created order: %w", err)
	}

	state, err := c.states.Get(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	if source == sync.SourceWebhook {
		state.MarkWebhookProcessed(remote.ID)
	} else {
		state.MarkSyncedFromRemote(remote.ID, source)
	}
	if err := c.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save sync state: %w", err)
	}

	c.logger.Info("order created from warehouse",
		zap.String("order", o.Number),
		zap.String("remote_id", remote.ID))
	return o, nil
}

// TransformToRemote builds the outbound order payload. Missing required
// configuration fails fast rather than submitting a partial payload.
func (c *Coordinator) TransformToRemote(ctx context.Context, o *order.Order) (map[string]any, error) {
	if c.cfg.RemoteCustomerID == "" {
		return nil, fmt.Errorf("%w: remote customer id is not configured", sync.ErrConfiguration)
	}

	street, houseNumber := splitStreet(o.Street, o.HouseNumber)

	methodID, err := c.resolveShippingMethod(ctx, o.ShippingMethod)
	if err != nil {
		return nil, err
	}

	lines := make([]map[string]any, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, map[string]any{
			"article_code": l.SKU,
			"quantity":     l.Quantity,
			"description":  l.Description,
		})
	}

	return map[string]any{
		"customer_id":        c.cfg.RemoteCustomerID,
		"external_reference": o.ExternalReference,
		"addressed_to":       o.CustomerName,
		"email":              o.Email,
		"phone":              o.Phone,
		"street":             street,
		"house_number":       houseNumber,
		"postal_code":        o.PostalCode,
		"city":               o.City,
		"country_code":       o.CountryCode,
		"shipping_method_id": methodID,
		"delivery_date":      c.deliveryDate(o).Format("2006-01-02"),
		"order_lines":        lines,
	}, nil
}

func (c *Coordinator) resolveShippingMethod(ctx context.Context, localCode string) (string, error) {
	if localCode != "" {
		methodID, err := c.methods.RemoteID(ctx, localCode)
		if err == nil {
			return methodID, nil
		}
		if !errors.Is(err, sync.ErrConfiguration) {
			return "", err
		}
	}
	if c.cfg.DefaultShippingMethodID == "" {
		return "", fmt.Errorf("%w: no shipping method mapping for %q and no default configured", sync.ErrConfiguration, localCode)
	}
	return c.cfg.DefaultShippingMethodID, nil
}

// deliveryDate returns the customer-requested date, or the next business day
func (c *Coordinator) deliveryDate(o *order.Order) time.Time {
	if o.RequestedDeliveryDate != nil {
		return *o.RequestedDeliveryDate
	}
	return NextBusinessDay(c.now())
}

// NextBusinessDay returns the next weekday after the given time
func NextBusinessDay(from time.Time) time.Time {
	day := from.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// splitStreet makes a best-effort split of a combined street line into
// street and house number when no separate number is recorded
func splitStreet(street, houseNumber string) (string, string) {
	if houseNumber != "" {
		return street, houseNumber
	}

	trimmed := strings.TrimSpace(street)
	idx := strings.LastIndex(trimmed, " ")
	if idx <= 0 {
		return trimmed, ""
	}

	tail := trimmed[idx+1:]
	if tail == "" || tail[0] < '0' || tail[0] > '9' {
		return trimmed, ""
	}
	return strings.TrimSpace(trimmed[:idx]), tail
}

func (c *Coordinator) markFailed(ctx context.Context, orderID uuid.UUID, cause error, source sync.ProcessingSource) {
	state, err := c.states.Get(ctx, orderID)
	if err != nil {
		c.logger.Warn("failed to load sync state for failure marking", zap.Error(err))
		return
	}
	state.MarkFailed(cause.Error(), source)
	if err := c.states.Save(ctx, state); err != nil {
		c.logger.Warn("failed to persist failure state", zap.Error(err))
	}
}
