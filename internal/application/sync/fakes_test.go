package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

// fakeGateway is a canned-response WMS API for tests
type fakeGateway struct {
	orders    map[string]*sync.RemoteOrder
	variants  map[string]*sync.RemoteVariant
	stock     []sync.RemoteStockLevel
	shipments []sync.RemoteShipment
	inbounds  []sync.RemoteInbound

	createdOrders   []map[string]any
	createdVariants []map[string]any

	getOrderErr   error
	createOrdErr  error
	getVariantErr error
	nextOrderID   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders:   make(map[string]*sync.RemoteOrder),
		variants: make(map[string]*sync.RemoteVariant),
	}
}

func (g *fakeGateway) GetOrder(_ context.Context, orderID string) (*sync.RemoteOrder, error) {
	if g.getOrderErr != nil {
		return nil, g.getOrderErr
	}
	if o, ok := g.orders[orderID]; ok {
		return o, nil
	}
	return nil, sync.ErrOrderNotFound
}

func (g *fakeGateway) CreateOrder(_ context.Context, payload map[string]any) (*sync.RemoteOrder, error) {
	if g.createOrdErr != nil {
		return nil, g.createOrdErr
	}
	g.createdOrders = append(g.createdOrders, payload)
	g.nextOrderID++
	ref, _ := payload["external_reference"].(string)
	created := &sync.RemoteOrder{
		ID:                uuid.NewString(),
		ExternalReference: ref,
		Status:            "created",
	}
	g.orders[created.ID] = created
	return created, nil
}

func (g *fakeGateway) ListOrders(_ context.Context, _ sync.ListOptions) ([]sync.RemoteOrder, error) {
	out := make([]sync.RemoteOrder, 0, len(g.orders))
	for _, o := range g.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (g *fakeGateway) ShipOrder(_ context.Context, orderID string) (*sync.RemoteOrder, error) {
	return g.GetOrder(context.Background(), orderID)
}

func (g *fakeGateway) ListStock(_ context.Context, _ sync.ListOptions) ([]sync.RemoteStockLevel, error) {
	return g.stock, nil
}

func (g *fakeGateway) ListShipments(_ context.Context, _ sync.ListOptions) ([]sync.RemoteShipment, error) {
	return g.shipments, nil
}

func (g *fakeGateway) ListInbounds(_ context.Context, _ sync.ListOptions) ([]sync.RemoteInbound, error) {
	return g.inbounds, nil
}

func (g *fakeGateway) GetVariant(_ context.Context, variantID string) (*sync.RemoteVariant, error) {
	if g.getVariantErr != nil {
		return nil, g.getVariantErr
	}
	if v, ok := g.variants[variantID]; ok {
		return v, nil
	}
	return nil, nil
}

func (g *fakeGateway) FindVariantByArticleCode(_ context.Context, articleCode string) (*sync.RemoteVariant, error) {
	for _, v := range g.variants {
		if v.ArticleCode == articleCode {
			return v, nil
		}
	}
	return nil, nil
}

func (g *fakeGateway) CreateVariant(_ context.Context, payload map[string]any) (*sync.RemoteVariant, error) {
	g.createdVariants = append(g.createdVariants, payload)
	code, _ := payload["article_code"].(string)
	v := &sync.RemoteVariant{ID: uuid.NewString(), ArticleCode: code}
	g.variants[v.ID] = v
	return v, nil
}

var _ sync.Gateway = (*fakeGateway)(nil)

// countingNotifier records outbound change notifications
type countingNotifier struct {
	calls int
}

func (n *countingNotifier) OrderChanged(_ context.Context, _ *order.Order, _ string) {
	n.calls++
}

// trackingSuspender records legacy bus suspend/resume pairing
type trackingSuspender struct {
	suspended int
	resumed   int
}

func (s *trackingSuspender) Suspend(_ uuid.UUID) { s.suspended++ }
func (s *trackingSuspender) Resume(_ uuid.UUID)  { s.resumed++ }

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// testEnv wires real sqlite-backed repositories with a fake WMS gateway
type testEnv struct {
	db          *gorm.DB
	gateway     *fakeGateway
	orders      *persistence.GormOrderRepository
	states      *persistence.GormOrderStateRepository
	products    *persistence.GormProductRepository
	methods     *persistence.GormShippingMethodRepository
	jobs        *persistence.GormWebhookJobRepository
	syncJobs    *persistence.GormSyncJobRepository
	notifier    *countingNotifier
	resolver    *ProductResolver
	coordinator *Coordinator
}

func newTestEnv(t *testing.T, cfg CoordinatorConfig) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WebhookJobModel{},
		&models.OrderSyncStateModel{},
		&models.SyncJobModel{},
		&models.ShippingMethodMappingModel{},
		&models.OrderModel{},
		&models.OrderLineModel{},
		&models.OrderNoteModel{},
		&models.ProductModel{},
	))

	env := &testEnv{
		db:       db,
		gateway:  newFakeGateway(),
		orders:   persistence.NewOrderRepository(db),
		states:   persistence.NewOrderStateRepository(db),
		products: persistence.NewProductRepository(db),
		methods:  persistence.NewShippingMethodRepository(db),
		jobs:     persistence.NewWebhookJobRepository(db),
		syncJobs: persistence.NewSyncJobRepository(db),
		notifier: &countingNotifier{},
	}
	env.orders.SetNotifier(env.notifier)
	env.resolver = NewProductResolver(env.products, env.gateway, nil)
	env.coordinator = NewCoordinator(env.orders, env.states, env.methods, env.resolver, cfg, nil)
	return env
}

func (e *testEnv) queueService(cfg QueueServiceConfig) *QueueService {
	return NewQueueService(e.jobs, e.coordinator, e.products, e.orders, cfg, nil)
}

func (e *testEnv) orchestrator(batchLimit int) *Orchestrator {
	return NewOrchestrator(e.syncJobs, e.coordinator, e.resolver, e.gateway,
		e.orders, e.states, e.products, batchLimit, nil)
}
