package sync

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// WebhookJobStatus represents the lifecycle status of a queued webhook job
type WebhookJobStatus string

const (
	WebhookJobStatusPending    WebhookJobStatus = "PENDING"
	WebhookJobStatusProcessing WebhookJobStatus = "PROCESSING"
	WebhookJobStatusProcessed  WebhookJobStatus = "PROCESSED"
	WebhookJobStatusFailed     WebhookJobStatus = "FAILED"
	WebhookJobStatusArchived   WebhookJobStatus = "ARCHIVED"
)

// Queue policy defaults
const (
	// DefaultMaxAttempts is how many times a job may be attempted before it
	// is marked failed
	DefaultMaxAttempts = 3
	// DefaultStuckTimeout is how long a job may stay in PROCESSING before the
	// sweep presumes its worker died and resets it
	DefaultStuckTimeout = 5 * time.Minute
	// DefaultProcessedRetention is how long processed jobs are kept before purge
	DefaultProcessedRetention = 7 * 24 * time.Hour
	// DefaultFailedRetention is how long failed jobs are kept before archival,
	// and how long archived jobs are kept before purge
	DefaultFailedRetention = 7 * 24 * time.Hour
)

// WebhookJob is one queued unit of work representing an inbound WMS event
// notification. Jobs are deduplicated by DedupID: enqueueing the same id
// twice is a silent no-op.
type WebhookJob struct {
	ID                   uuid.UUID
	DedupID              string
	Group                EventGroup
	Action               EventAction
	EntityID             string
	ExternalReference    string
	Payload              []byte
	Priority             int
	RequiresPrerequisite bool
	PrerequisiteGroup    EventGroup
	PrerequisiteAction   EventAction
	Status               WebhookJobStatus
	Attempts             int
	MaxAttempts          int
	LastError            string
	ProcessedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewWebhookJob creates a pending job for an inbound event. Priority and
// prerequisite are derived from the (group, action) pair.
func NewWebhookJob(dedupID string, group EventGroup, action EventAction, entityID, externalRef string, payload []byte) (*WebhookJob, error) {
	if dedupID == "" {
		return nil, errors.New("webhook job requires a dedup id")
	}
	if group == "" || action == "" {
		return nil, errors.New("webhook job requires group and action")
	}

	now := time.Now()
	job := &WebhookJob{
		ID:                uuid.New(),
		DedupID:           dedupID,
		Group:             group,
		Action:            action,
		EntityID:          entityID,
		ExternalReference: externalRef,
		Payload:           payload,
		Priority:          PriorityFor(group, action),
		Status:            WebhookJobStatusPending,
		MaxAttempts:       DefaultMaxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if prereq, ok := PrerequisiteFor(group, action); ok {
		job.RequiresPrerequisite = true
		job.PrerequisiteGroup = prereq.Group
		job.PrerequisiteAction = prereq.Action
	}

	return job, nil
}

// MarkProcessing transitions the job to PROCESSING. Attempts are counted on
// failure (and by the stuck sweep), not on claim.
func (j *WebhookJob) MarkProcessing() error {
	if j.Status != WebhookJobStatusPending {
		return errors.New("only pending jobs can be marked processing")
	}
	j.Status = WebhookJobStatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

// MarkProcessed transitions the job to PROCESSED
func (j *WebhookJob) MarkProcessed() {
	now := time.Now()
	j.Status = WebhookJobStatusProcessed
	j.ProcessedAt = &now
	j.LastError = ""
	j.UpdatedAt = now
}

// MarkAttemptFailed records a failed attempt. Below the attempt cap the job
// returns to PENDING for the next worker pass; at the cap it becomes FAILED.
func (j *WebhookJob) MarkAttemptFailed(errMsg string) {
	j.Attempts++
	j.LastError = errMsg
	j.UpdatedAt = time.Now()
	if j.Attempts >= j.MaxAttempts {
		j.Status = WebhookJobStatusFailed
	} else {
		j.Status = WebhookJobStatusPending
	}
}

// Archive transitions a failed job to ARCHIVED
func (j *WebhookJob) Archive() error {
	if j.Status != WebhookJobStatusFailed {
		return errors.New("only failed jobs can be archived")
	}
	j.Status = WebhookJobStatusArchived
	j.UpdatedAt = time.Now()
	return nil
}

// ResetForRetry resets a failed job to PENDING with a fresh attempt budget
func (j *WebhookJob) ResetForRetry() error {
	if j.Status != WebhookJobStatusFailed {
		return errors.New("only failed jobs can be reset for retry")
	}
	j.Status = WebhookJobStatusPending
	j.Attempts = 0
	j.LastError = ""
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal returns true when no further processing will ever pick this job up
func (j *WebhookJob) IsTerminal() bool {
	return j.Status == WebhookJobStatusProcessed || j.Status == WebhookJobStatusArchived
}

// QueueHealthStatus is the derived overall queue health
type QueueHealthStatus string

const (
	QueueHealthy   QueueHealthStatus = "healthy"
	QueueUnhealthy QueueHealthStatus = "unhealthy"
)

// QueueHealth is the health surface of the webhook queue
type QueueHealth struct {
	CountsByStatus   map[WebhookJobStatus]int64 `json:"counts_by_status"`
	OldestPendingAge time.Duration              `json:"oldest_pending_age"`
	StuckProcessing  int64                      `json:"stuck_processing"`
	Status           QueueHealthStatus          `json:"status"`
}
