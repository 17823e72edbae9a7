package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WebhookJobRepository is the persistence port for the webhook ingestion
// queue
type WebhookJobRepository interface {
	// Enqueue inserts the job. If a job with the same dedup id already
	// exists the call is a silent no-op success and returns false.
	Enqueue(ctx context.Context, job *WebhookJob) (inserted bool, err error)

	// ClaimPending atomically moves up to limit eligible pending jobs to
	// PROCESSING and returns them, ordered by (priority asc, created_at
	// asc). Jobs with an unsatisfied prerequisite are left pending
	// untouched; attempts are counted on failure, not on claim.
	ClaimPending(ctx context.Context, limit int) ([]*WebhookJob, error)

	Update(ctx context.Context, job *WebhookJob) error
	FindByDedupID(ctx context.Context, dedupID string) (*WebhookJob, error)

	// PrerequisiteSatisfied reports whether a processed job matching the
	// prerequisite (group, action) exists for the entity.
	PrerequisiteSatisfied(ctx context.Context, entityID string, prereq Prerequisite) (bool, error)

	// ResetStuck sweeps jobs stuck in PROCESSING past the timeout back to
	// PENDING with attempts incremented and a diagnostic note. Returns the
	// number of jobs reset.
	ResetStuck(ctx context.Context, stuckSince time.Time) (int64, error)

	// ArchiveExpiredFailed archives failed jobs older than the cutoff
	ArchiveExpiredFailed(ctx context.Context, before time.Time) (int64, error)

	// PurgeProcessed deletes processed jobs older than the cutoff,
	// and archived jobs past their retention
	PurgeProcessed(ctx context.Context, processedBefore, archivedBefore time.Time) (int64, error)

	// RetryFailed bulk-resets failed jobs to PENDING with attempts cleared
	RetryFailed(ctx context.Context) (int64, error)

	CountByStatus(ctx context.Context) (map[WebhookJobStatus]int64, error)
	OldestPendingAge(ctx context.Context, now time.Time) (time.Duration, error)
	CountStuck(ctx context.Context, stuckSince time.Time) (int64, error)
}

// OrderStateRepository is the persistence port for order sync state records
type OrderStateRepository interface {
	// Get returns the state record for the order, creating a pending record
	// lazily on first access.
	Get(ctx context.Context, orderID uuid.UUID) (*OrderSyncState, error)
	Save(ctx context.Context, state *OrderSyncState) error

	// MigrateLegacyFlags converts legacy per-order sync columns into unified
	// state records and clears the legacy fields. Run once at startup.
	MigrateLegacyFlags(ctx context.Context) (int64, error)
}

// SyncJobRepository is the persistence port for batch sync jobs
type SyncJobRepository interface {
	Save(ctx context.Context, job *SyncJob) error
	Update(ctx context.Context, job *SyncJob) error

	// ClaimNext atomically claims the highest-priority queued job, or
	// returns nil when the queue is empty.
	ClaimNext(ctx context.Context) (*SyncJob, error)

	// HasQueued reports whether a queued job of the given type exists, so
	// continuations are not enqueued twice.
	HasQueued(ctx context.Context, jobType SyncJobType) (bool, error)
}

// ShippingMethodRepository resolves local shipping method codes to WMS
// shipping method ids via a persisted mapping table
type ShippingMethodRepository interface {
	RemoteID(ctx context.Context, localCode string) (string, error)
}

// RateLimitStore persists the shared rate limit status record
type RateLimitStore interface {
	Get(ctx context.Context) (*RateLimitStatus, error)
	Set(ctx context.Context, status *RateLimitStatus) error
}
