package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wms-sync/internal/domain/catalog"
	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

func seedProduct(t *testing.T, env *testEnv, sku, barcode string, price float64) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		SKU:       sku,
		Name:      "Product " + sku,
		Barcode:   barcode,
		Price:     decimal.NewFromFloat(price),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	p.ID = newUUID(t)
	require.NoError(t, env.products.Save(context.Background(), p))
	return p
}

func TestCoordinator_CreateFromRemote(t *testing.T) {
	env := newTestEnv(t, CoordinatorConfig{})
	ctx := context.Background()

	seedProduct(t, env, "SKU-A", "111", 10)

	remote := &sync.RemoteOrder{
		ID:                "wms-1",
		Reference:         "WR-1",
		ExternalReference: "ORD-1",
		Status:            "plannable",
		AddressedTo:       "Jan van der Berg",
		Email:             "jan@example.com",
		Street:            "Keizersgracht",
		HouseNumber:       "12",
		City:              "Amsterdam",
		CountryCode:       "NL",
		OrderLines: []sync.RemoteOrderLine{
			{ArticleCode: "SKU-A", Description: "Widget", Quantity: decimal.NewFromInt(2)},
			{ArticleCode: "SKU-UNKNOWN", Description: "Mystery", Quantity: decimal.NewFromInt(1)},
		},
	}

	created, err := env.coordinator.CreateFromRemote(ctx, remote, sync.SourceWebhook)
	require.NoError(t, err)

	assert.Equal(t, "ORD-1", created.ExternalReference)
	assert.Equal(t, order.StatusProcessing, created.Status)
	assert.Equal(t, "Jan van der Berg", created.CustomerName)
	assert.Equal(t, "Berg", created.LastName)
	assert.Equal(t, "wms-1", created.RemoteOrderID)
	require.Len(t, created.Lines, 2)

	// The unknown article got a placeholder product
	placeholder, err := env.products.FindBySKU(ctx, "SKU-UNKNOWN")
	require.NoError(t, err)
	assert.True(t, placeholder.Placeholder)

	// Remote-originated creation must not notify outbound sync
	assert.Zero(t, env.notifier.calls)

	state, err := env.states.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.OrderStateWebhookProcessed, state.State)
}

func TestCoordinator_UpdateFromRemote_StatusChange(t *testing.T) {
	env := newTestEnv(t, CoordinatorConfig{})
	ctx := context.Background()

	local := order.NewOrder("SO-1", "ORD-1")
	local.ChangeStatus(order.StatusProcessing)
	require.NoError(t, env.orders.Save(ctx, local, order.SaveOptions{SuppressNotifications: true}))

	remote := &sync.RemoteOrder{
		ID:                "wms-1",
		ExternalReference: "ORD-1",
		Status:            "shipped",
	}

	require.NoError(t, env.coordinator.UpdateFromRemote(ctx, local, remote, sync.SourceWebhook))

	reloaded, err := env.orders.FindByID(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, reloaded.Status)
	assert.Equal(t, "shipped", reloaded.RemoteStatus)
	assert.NotEmpty(t, reloaded.RemoteRaw)

	var notes []models.OrderNoteModel
	require.NoError(t, env.db.Where("order_id = ?", local.ID).Find(&notes).Error)
	require.Len(t, notes, 1, "a status change appends an audit note")
	assert.Contains(t, notes[0].Text, "shipped")

	assert.Zero(t, env.notifier.calls, "inbound updates must not echo outbound")
}

func TestCoordinator_UpdateFromRemote_NoStatusChangeNoNote(t *testing.T) {
	env := newTestEnv(t, CoordinatorConfig{})
	ctx := context.Background()

	local := order.NewOrder("SO-2", "ORD-2")
	local.ChangeStatus(order.StatusProcessing)
	require.NoError(t, env.orders.Save(ctx, local, order.SaveOptions{SuppressNotifications: true}))

	remote := &sync.RemoteOrder{ID: "wms-2", ExternalReference: "ORD-2", Status: "planned"}
	require.NoError(t, env.coordinator.UpdateFromRemote(ctx, local, remote, sync.SourceWebhook))

	var notes []models.OrderNoteModel
	require.NoError(t, env.db.Where("order_id = ?", local.ID).Find(&notes).Error)
	assert.Empty(t, notes)
}

func TestCoordinator_UpdateFromRemote_FailureMarksStateAndResumes(t *testing.T) {
	env := newTestEnv(t, CoordinatorConfig{})
	ctx := context.Background()

	suspender := &trackingSuspender{}
	env.coordinator.SetNotificationSuspender(suspender)
	env.gateway.getVariantErr = sync.ErrNetwork

	local := order.NewOrder("SO-3", "ORD-3")
	require.NoError(t, env.orders.Save(ctx, local, order.SaveOptions{SuppressNotifications: true}))

	remote := &sync.RemoteOrder{
		ID:                "wms-3",
		ExternalReference: "ORD-3",
		Status:            "processing",
		OrderLines: []sync.RemoteOrderLine{
			{ArticleCode: "SKU-MISSING", VariantID: "var-9", Quantity: decimal.NewFromInt(1)},
		},
	}

	err := env.coordinator.UpdateFromRemote(ctx, local, remote, sync.SourceWebhook)
	require.Error(t, err)
	assert.ErrorIs(t, err, sync.ErrReconciliation)

	state, stateErr := env.states.Get(ctx, local.ID)
	require.NoError(t, stateErr)
	assert.Equal(t, sync.OrderStateFailed, state.State)
	assert.NotEmpty(t, state.ErrorMessage)

	assert.Equal(t, 1, suspender.suspended)
	assert.Equal(t, 1, suspender.resumed, "legacy bus must be resumed on failure")
}

func TestCoordinator_TransformToRemote(t *testing.T) {
	ctx := context.Background()

	t.Run("missing customer id fails fast", func(t *testing.T) {
		env := newTestEnv(t, CoordinatorConfig{})
		o := order.NewOrder("SO-1", "ORD-1")

		_, err := env.coordinator.TransformToRemote(ctx, o)
		require.Error(t, err)
		assert.ErrorIs(t, err, sync.ErrConfiguration)
	})

	t.Run("builds full payload", func(t *testing.T) {
		env := newTestEnv(t, CoordinatorConfig{
			RemoteCustomerID:        "cust-9",
			DefaultShippingMethodID: "method-default",
		})
		require.NoError(t, env.db.Create(&models.ShippingMethodMappingModel{
			ID:        newUUID(t),
			LocalCode: "express",
			RemoteID:  "method-express",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}).Error)

		o := order.NewOrder("SO-1", "ORD-1")
		o.CustomerName = "Jan Jansen"
		o.Street = "Herengracht 101"
		o.ShippingMethod = "express"
		o.UpsertLine(newUUID(t), "SKU-A", "Widget", decimal.NewFromInt(2), decimal.NewFromInt(5))

		payload, err := env.coordinator.TransformToRemote(ctx, o)
		require.NoError(t, err)

		assert.Equal(t, "cust-9", payload["customer_id"])
		assert.Equal(t, "Herengracht", payload["street"])
		assert.Equal(t, "101", payload["house_number"])
		assert.Equal(t, "method-express", payload["shipping_method_id"])
		assert.NotEmpty(t, payload["delivery_date"])

		lines, ok := payload["order_lines"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, lines, 1)
		assert.Equal(t, "SKU-A", lines[0]["article_code"])
	})

	t.Run("unmapped method falls back to default", func(t *testing.T) {
		env := newTestEnv(t, CoordinatorConfig{
			RemoteCustomerID:        "cust-9",
			DefaultShippingMethodID: "method-default",
		})
		o := order.NewOrder("SO-1", "ORD-1")
		o.ShippingMethod = "pigeon"

		payload, err := env.coordinator.TransformToRemote(ctx, o)
		require.NoError(t, err)
		assert.Equal(t, "method-default", payload["shipping_method_id"])
	})

	t.Run("unmapped method without default fails", func(t *testing.T) {
		env := newTestEnv(t, CoordinatorConfig{RemoteCustomerID: "cust-9"})
		o := order.NewOrder("SO-1", "ORD-1")
		o.ShippingMethod = "pigeon"

		_, err := env.coordinator.TransformToRemote(ctx, o)
		require.Error(t, err)
		assert.ErrorIs(t, err, sync.ErrConfiguration)
	})
}

func TestNextBusinessDay(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Weekday
	}{
		{"monday to tuesday", time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), time.Tuesday},
		{"friday skips weekend", time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC), time.Monday},
		{"saturday skips sunday", time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), time.Monday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextBusinessDay(tt.from).Weekday())
		})
	}
}

func TestSplitStreet(t *testing.T) {
	tests := []struct {
		name       string
		street     string
		number     string
		wantStreet string
		wantNumber string
	}{
		{"explicit number wins", "Herengracht", "12", "Herengracht", "12"},
		{"trailing number split", "Herengracht 101", "", "Herengracht", "101"},
		{"number with suffix", "Herengracht 101a", "", "Herengracht", "101a"},
		{"no number", "Herengracht", "", "Herengracht", ""},
		{"trailing word is not a number", "Lange Voorhout", "", "Lange Voorhout", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			street, number := splitStreet(tt.street, tt.number)
			assert.Equal(t, tt.wantStreet, street)
			assert.Equal(t, tt.wantNumber, number)
		})
	}
}
