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

func setupWebhookJobTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.WebhookJobModel{},
		&models.OrderModel{},
		&models.OrderLineModel{},
	)
	require.NoError(t, err)

	return db
}

func mustNewJob(t *testing.T, dedupID string, group sync.EventGroup, action sync.EventAction, entityID, externalRef string) *sync.WebhookJob {
	t.Helper()
	job, err := sync.NewWebhookJob(dedupID, group, action, entityID, externalRef, []byte(`{}`))
	require.NoError(t, err)
	return job
}

func TestWebhookJobRepository_Enqueue(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	t.Run("inserts new job", func(t *testing.T) {
		job := mustNewJob(t, "evt-1", sync.EventGroupOrder, sync.EventActionCreated, "wms-100", "ORD-100")

		inserted, err := repo.Enqueue(ctx, job)
		require.NoError(t, err)
		assert.True(t, inserted)

		found, err := repo.FindByDedupID(ctx, "evt-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, sync.WebhookJobStatusPending, found.Status)
		assert.Equal(t, 1, found.Priority)
	})

	t.Run("duplicate dedup id is a no-op", func(t *testing.T) {
		dup := mustNewJob(t, "evt-1", sync.EventGroupOrder, sync.EventActionCreated, "wms-100", "ORD-100")

		inserted, err := repo.Enqueue(ctx, dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[sync.WebhookJobStatusPending])
	})
}

func TestWebhookJobRepository_ClaimPending_PriorityOrder(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	// Enqueued out of priority order on purpose; article.deleted is not in
	// the priority table and sorts last
	for _, j := range []*sync.WebhookJob{
		mustNewJob(t, "evt-a", sync.EventGroupArticle, sync.EventActionDeleted, "art-1", ""),
		mustNewJob(t, "evt-b", sync.EventGroupOrder, sync.EventActionCreated, "wms-1", "ORD-1"),
		mustNewJob(t, "evt-c", sync.EventGroupStock, sync.EventActionUpdated, "sku-1", ""),
	} {
		_, err := repo.Enqueue(ctx, j)
		require.NoError(t, err)
	}

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 3)

	assert.Equal(t, []int{1, 10, sync.DefaultPriority}, []int{
		claimed[0].Priority, claimed[1].Priority, claimed[2].Priority,
	})
	for _, j := range claimed {
		assert.Equal(t, sync.WebhookJobStatusProcessing, j.Status)
		assert.Equal(t, 0, j.Attempts, "claiming must not count an attempt")
	}
}

func TestWebhookJobRepository_ClaimPending_PrerequisiteGating(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	update := mustNewJob(t, "evt-upd", sync.EventGroupOrder, sync.EventActionUpdated, "wms-7", "ORD-7")
	_, err := repo.Enqueue(ctx, update)
	require.NoError(t, err)

	t.Run("held while prerequisite unprocessed", func(t *testing.T) {
		claimed, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		held, err := repo.FindByDedupID(ctx, "evt-upd")
		require.NoError(t, err)
		assert.Equal(t, sync.WebhookJobStatusPending, held.Status)
		assert.Equal(t, 0, held.Attempts, "a held job is not a failed attempt")
	})

	t.Run("released once prerequisite processed", func(t *testing.T) {
		created := mustNewJob(t, "evt-crt", sync.EventGroupOrder, sync.EventActionCreated, "wms-7", "ORD-7")
		_, err := repo.Enqueue(ctx, created)
		require.NoError(t, err)

		claimed, err := repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "evt-crt", claimed[0].DedupID)

		claimed[0].MarkProcessed()
		require.NoError(t, repo.Update(ctx, claimed[0]))

		claimed, err = repo.ClaimPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "evt-upd", claimed[0].DedupID)
	})
}

func TestWebhookJobRepository_ClaimPending_LocalExistenceBypass(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	// Order created through batch sync, so no order.created webhook job
	// will ever exist for it
	now := time.Now()
	require.NoError(t, db.Create(&models.OrderModel{
		ID:                uuid.New(),
		Number:            "SO-42",
		Status:            "PROCESSING",
		ExternalReference: "ORD-42",
		CreatedAt:         now,
		UpdatedAt:         now,
	}).Error)

	update := mustNewJob(t, "evt-42", sync.EventGroupOrder, sync.EventActionUpdated, "wms-42", "ORD-42")
	_, err := repo.Enqueue(ctx, update)
	require.NoError(t, err)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "evt-42", claimed[0].DedupID)
}

func TestWebhookJobRepository_ResetStuck(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	stuck := mustNewJob(t, "evt-stuck", sync.EventGroupStock, sync.EventActionUpdated, "sku-9", "")
	require.NoError(t, stuck.MarkProcessing())
	stuck.UpdatedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(stuck)).Error)

	fresh := mustNewJob(t, "evt-fresh", sync.EventGroupStock, sync.EventActionUpdated, "sku-10", "")
	require.NoError(t, fresh.MarkProcessing())
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(fresh)).Error)

	reset, err := repo.ResetStuck(ctx, time.Now().Add(-sync.DefaultStuckTimeout))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	swept, err := repo.FindByDedupID(ctx, "evt-stuck")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusPending, swept.Status)
	assert.Equal(t, 1, swept.Attempts, "the sweep counts the lost attempt")
	assert.Contains(t, swept.LastError, "stuck-job sweep")

	untouched, err := repo.FindByDedupID(ctx, "evt-fresh")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusProcessing, untouched.Status)
}

func TestWebhookJobRepository_ResetStuck_AttemptCap(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	// One prior sweep-counted attempt away from the cap; the sweep must fail
	// it, not put it back in rotation
	atCap := mustNewJob(t, "evt-cap", sync.EventGroupStock, sync.EventActionUpdated, "sku-20", "")
	require.NoError(t, atCap.MarkProcessing())
	atCap.Attempts = atCap.MaxAttempts - 1
	atCap.UpdatedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(atCap)).Error)

	belowCap := mustNewJob(t, "evt-below", sync.EventGroupStock, sync.EventActionUpdated, "sku-21", "")
	require.NoError(t, belowCap.MarkProcessing())
	belowCap.UpdatedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(belowCap)).Error)

	swept, err := repo.ResetStuck(ctx, time.Now().Add(-sync.DefaultStuckTimeout))
	require.NoError(t, err)
	assert.Equal(t, int64(2), swept)

	terminal, err := repo.FindByDedupID(ctx, "evt-cap")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusFailed, terminal.Status)
	assert.Equal(t, terminal.MaxAttempts, terminal.Attempts)
	assert.Contains(t, terminal.LastError, "attempt cap")

	recycled, err := repo.FindByDedupID(ctx, "evt-below")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusPending, recycled.Status)
	assert.Equal(t, 1, recycled.Attempts)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "only the below-cap job goes back in rotation")
	assert.Equal(t, "evt-below", claimed[0].DedupID)
}

func TestWebhookJobRepository_RetryFailed(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	failed := mustNewJob(t, "evt-fail", sync.EventGroupInbound, sync.EventActionReceived, "inb-1", "")
	require.NoError(t, failed.MarkProcessing())
	for failed.Status != sync.WebhookJobStatusFailed {
		if failed.Status == sync.WebhookJobStatusPending {
			require.NoError(t, failed.MarkProcessing())
		}
		failed.MarkAttemptFailed("boom")
	}
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(failed)).Error)

	retried, err := repo.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retried)

	job, err := repo.FindByDedupID(ctx, "evt-fail")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Empty(t, job.LastError)
}

func TestWebhookJobRepository_Retention(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-8 * 24 * time.Hour)

	processed := mustNewJob(t, "evt-old-ok", sync.EventGroupOrder, sync.EventActionCreated, "wms-1", "ORD-1")
	require.NoError(t, processed.MarkProcessing())
	processed.MarkProcessed()
	processed.ProcessedAt = &old
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(processed)).Error)

	failed := mustNewJob(t, "evt-old-bad", sync.EventGroupOrder, sync.EventActionCreated, "wms-2", "ORD-2")
	require.NoError(t, failed.MarkProcessing())
	failed.Status = sync.WebhookJobStatusFailed
	failed.UpdatedAt = old
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(failed)).Error)

	archived, err := repo.ArchiveExpiredFailed(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	job, err := repo.FindByDedupID(ctx, "evt-old-bad")
	require.NoError(t, err)
	assert.Equal(t, sync.WebhookJobStatusArchived, job.Status)

	// The just-archived job is inside its retention window and survives
	purged, err := repo.PurgeProcessed(ctx, time.Now().Add(-7*24*time.Hour), time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	gone, err := repo.FindByDedupID(ctx, "evt-old-ok")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestWebhookJobRepository_Health(t *testing.T) {
	db := setupWebhookJobTestDB(t)
	repo := NewWebhookJobRepository(db)
	ctx := context.Background()

	pending := mustNewJob(t, "evt-p", sync.EventGroupStock, sync.EventActionUpdated, "sku-1", "")
	pending.CreatedAt = time.Now().Add(-3 * time.Minute)
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(pending)).Error)

	stuck := mustNewJob(t, "evt-s", sync.EventGroupStock, sync.EventActionUpdated, "sku-2", "")
	require.NoError(t, stuck.MarkProcessing())
	stuck.UpdatedAt = time.Now().Add(-20 * time.Minute)
	require.NoError(t, db.Create(models.WebhookJobModelFromDomain(stuck)).Error)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[sync.WebhookJobStatusPending])
	assert.Equal(t, int64(1), counts[sync.WebhookJobStatusProcessing])

	age, err := repo.OldestPendingAge(ctx, time.Now())
	require.NoError(t, err)
	assert.Greater(t, age, 2*time.Minute)

	stuckCount, err := repo.CountStuck(ctx, time.Now().Add(-sync.DefaultStuckTimeout))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stuckCount)
}
