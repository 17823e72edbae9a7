package sync

import (
	"time"

	"github.com/google/uuid"
)

// SyncJobType identifies what a batch sync job does
type SyncJobType string

const (
	SyncJobTypeOrderExport SyncJobType = "order_export"
	SyncJobTypeOrderImport SyncJobType = "order_import"
	SyncJobTypeStock       SyncJobType = "stock"
	SyncJobTypeShipments   SyncJobType = "shipments"
	SyncJobTypeInbounds    SyncJobType = "inbounds"
)

// SyncJobStatus is the lifecycle status of a batch sync job
type SyncJobStatus string

const (
	SyncJobStatusQueued    SyncJobStatus = "QUEUED"
	SyncJobStatusRunning   SyncJobStatus = "RUNNING"
	SyncJobStatusCompleted SyncJobStatus = "COMPLETED"
	SyncJobStatusFailed    SyncJobStatus = "FAILED"
)

// syncJobPriority ranks batch job types for ProcessNextJob selection.
// Order flow beats stock and logistics detail.
var syncJobPriority = map[SyncJobType]int{
	SyncJobTypeOrderExport: 1,
	SyncJobTypeOrderImport: 2,
	SyncJobTypeShipments:   3,
	SyncJobTypeStock:       4,
	SyncJobTypeInbounds:    5,
}

// SyncJob is one scheduled batch synchronization run. Batch jobs self-limit
// their item count per invocation and enqueue a continuation job instead of
// looping unbounded.
type SyncJob struct {
	ID          uuid.UUID
	JobType     SyncJobType
	Priority    int
	Status      SyncJobStatus
	Result      []byte
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSyncJob creates a queued batch job of the given type
func NewSyncJob(jobType SyncJobType) *SyncJob {
	now := time.Now()
	priority, ok := syncJobPriority[jobType]
	if !ok {
		priority = DefaultPriority
	}
	return &SyncJob{
		ID:        uuid.New(),
		JobType:   jobType,
		Priority:  priority,
		Status:    SyncJobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start marks the job running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete marks the job finished with a serialized result
func (j *SyncJob) Complete(result []byte) {
	now := time.Now()
	j.Status = SyncJobStatusCompleted
	j.Result = result
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job failed
func (j *SyncJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.Error = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// BatchResult aggregates the outcome of one batch entry point invocation
type BatchResult struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// AddSuccess counts one successfully handled item
func (r *BatchResult) AddSuccess() {
	r.Processed++
	r.Successful++
}

// AddFailure counts one failed item with its error
func (r *BatchResult) AddFailure(err error) {
	r.Processed++
	r.Failed++
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Merge folds another result into this one
func (r *BatchResult) Merge(other BatchResult) {
	r.Processed += other.Processed
	r.Successful += other.Successful
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}
