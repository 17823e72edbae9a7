package dto

import "encoding/json"

// WebhookEventRequest is the WMS webhook intake payload
type WebhookEventRequest struct {
	DedupID           string          `json:"dedup_id" binding:"required,max=128"`
	Group             string          `json:"group" binding:"required,oneof=order stock shipment inbound article variant"`
	Action            string          `json:"action" binding:"required,max=64"`
	EntityID          string          `json:"entity_id" binding:"max=128"`
	ExternalReference string          `json:"external_reference" binding:"max=128"`
	Payload           json.RawMessage `json:"payload" binding:"required"`
}

// WebhookEventResponse reports intake of a webhook event. Duplicate delivery
// of a dedup id is reported as accepted so the WMS does not keep retrying.
type WebhookEventResponse struct {
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
	Priority  int    `json:"priority"`
}

// ManualSyncRequest asks for an on-demand sync of specific orders
type ManualSyncRequest struct {
	OrderIDs []string `json:"order_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// CronSyncRequest optionally narrows a full order sync pass to one direction
type CronSyncRequest struct {
	SkipExport bool `json:"skip_export"`
	SkipImport bool `json:"skip_import"`
}

// BatchRunResponse is the outcome of one batch job run
type BatchRunResponse struct {
	Ran        bool     `json:"ran"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// MaintenanceResponse reports the outcome of the queue housekeeping sweeps
type MaintenanceResponse struct {
	StuckReset     int64 `json:"stuck_reset"`
	FailedArchived int64 `json:"failed_archived"`
	ProcessedPurge int64 `json:"processed_purged"`
	FailedRetried  int64 `json:"failed_retried"`
}
