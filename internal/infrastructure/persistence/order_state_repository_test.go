package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/infrastructure/persistence/models"
)

func setupOrderStateTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.OrderSyncStateModel{},
		&models.OrderModel{},
		&models.OrderLineModel{},
	)
	require.NoError(t, err)

	return db
}

func TestOrderStateRepository_GetLazyCreates(t *testing.T) {
	db := setupOrderStateTestDB(t)
	repo := NewOrderStateRepository(db)
	ctx := context.Background()

	orderID := uuid.New()

	state, err := repo.Get(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, orderID, state.OrderID)
	assert.Equal(t, sync.OrderStatePending, state.State)

	// Second read returns the persisted record, not a fresh one
	state.MarkFailed("transform error", sync.SourceWebhook)
	require.NoError(t, repo.Save(ctx, state))

	again, err := repo.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, sync.OrderStateFailed, again.State)
	assert.Equal(t, "transform error", again.ErrorMessage)
}

func TestOrderStateRepository_SaveLastWriterWins(t *testing.T) {
	db := setupOrderStateTestDB(t)
	repo := NewOrderStateRepository(db)
	ctx := context.Background()

	orderID := uuid.New()

	first, err := repo.Get(ctx, orderID)
	require.NoError(t, err)
	first.MarkExported("wms-1", sync.SourceBatch)
	require.NoError(t, repo.Save(ctx, first))

	second, err := repo.Get(ctx, orderID)
	require.NoError(t, err)
	second.MarkWebhookProcessed("wms-1")
	require.NoError(t, repo.Save(ctx, second))

	final, err := repo.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, sync.OrderStateWebhookProcessed, final.State)
	assert.Equal(t, "wms-1", final.RemoteOrderID)
}

func TestOrderStateRepository_MigrateLegacyFlags(t *testing.T) {
	db := setupOrderStateTestDB(t)
	repo := NewOrderStateRepository(db)
	ctx := context.Background()

	now := time.Now()
	exported := true
	syncedAt := now.Add(-48 * time.Hour)

	exportedOrder := &models.OrderModel{
		ID: uuid.New(), Number: "SO-1", Status: "PROCESSING",
		ExternalReference: "ORD-1", RemoteOrderID: "wms-1",
		LegacyExported: &exported,
		CreatedAt:      now, UpdatedAt: now,
	}
	syncedOrder := &models.OrderModel{
		ID: uuid.New(), Number: "SO-2", Status: "COMPLETED",
		ExternalReference: "ORD-2", RemoteOrderID: "wms-2",
		LegacySyncedAt: &syncedAt,
		CreatedAt:      now, UpdatedAt: now,
	}
	untouchedOrder := &models.OrderModel{
		ID: uuid.New(), Number: "SO-3", Status: "PENDING",
		ExternalReference: "ORD-3",
		CreatedAt:         now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(exportedOrder).Error)
	require.NoError(t, db.Create(syncedOrder).Error)
	require.NoError(t, db.Create(untouchedOrder).Error)

	migrated, err := repo.MigrateLegacyFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), migrated)

	expState, err := repo.Get(ctx, exportedOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.OrderStateExported, expState.State)
	assert.Equal(t, "wms-1", expState.RemoteOrderID)

	syncState, err := repo.Get(ctx, syncedOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, sync.OrderStateSyncedFromRemote, syncState.State)
	require.NotNil(t, syncState.LastProcessedAt)
	assert.WithinDuration(t, syncedAt, *syncState.LastProcessedAt, time.Second)

	// Legacy columns are cleared so a re-run is a no-op
	var cleared models.OrderModel
	require.NoError(t, db.Where("id = ?", exportedOrder.ID).First(&cleared).Error)
	assert.Nil(t, cleared.LegacyExported)

	again, err := repo.MigrateLegacyFlags(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}
