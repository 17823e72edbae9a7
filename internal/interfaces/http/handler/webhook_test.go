package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/wms-sync/internal/domain/sync"
	"github.com/erp/wms-sync/internal/interfaces/http/dto"
)

type fakeQueue struct {
	inserted bool
	err      error
	stored   *sync.WebhookJob
	lastJob  *sync.WebhookJob
}

func (q *fakeQueue) Enqueue(_ context.Context, dedupID string, group sync.EventGroup, action sync.EventAction, entityID, externalRef string, payload []byte) (*sync.WebhookJob, bool, error) {
	if q.err != nil {
		return nil, false, q.err
	}
	// A duplicate dedup id hands back the previously stored job
	if !q.inserted && q.stored != nil {
		return q.stored, false, nil
	}
	job, err := sync.NewWebhookJob(dedupID, group, action, entityID, externalRef, payload)
	if err != nil {
		return nil, false, err
	}
	q.lastJob = job
	return job, q.inserted, nil
}

func webhookRouter(queue WebhookQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewWebhookHandler(queue).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Receive(t *testing.T) {
	queue := &fakeQueue{inserted: true}
	engine := webhookRouter(queue)

	w := postJSON(t, engine, "/api/v1/webhooks/wms", `{
		"dedup_id": "evt-1",
		"group": "order",
		"action": "created",
		"entity_id": "wms-1",
		"external_reference": "ORD-1",
		"payload": {"id": "wms-1"}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["job_id"])
	assert.Equal(t, false, data["duplicate"])
	assert.Equal(t, float64(1), data["priority"])

	require.NotNil(t, queue.lastJob)
	assert.Equal(t, sync.EventGroupOrder, queue.lastJob.Group)
}

func TestWebhookHandler_DuplicateIsAccepted(t *testing.T) {
	stored, err := sync.NewWebhookJob("evt-1", sync.EventGroupStock, sync.EventActionUpdated, "sku-1", "", []byte(`{}`))
	require.NoError(t, err)
	engine := webhookRouter(&fakeQueue{inserted: false, stored: stored})

	w := postJSON(t, engine, "/api/v1/webhooks/wms", `{
		"dedup_id": "evt-1",
		"group": "stock",
		"action": "updated",
		"payload": {}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["duplicate"])
	assert.Equal(t, stored.ID.String(), data["job_id"], "duplicates acknowledge with the stored job id")
}

func TestWebhookHandler_ValidationErrors(t *testing.T) {
	engine := webhookRouter(&fakeQueue{inserted: true})

	tests := []struct {
		name string
		body string
	}{
		{"missing dedup id", `{"group": "order", "action": "created", "payload": {}}`},
		{"unknown group", `{"dedup_id": "e", "group": "invoice", "action": "created", "payload": {}}`},
		{"missing payload", `{"dedup_id": "e", "group": "order", "action": "created"}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, engine, "/api/v1/webhooks/wms", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
		})
	}
}

func TestWebhookHandler_QueueError(t *testing.T) {
	engine := webhookRouter(&fakeQueue{err: errors.New("db down")})

	w := postJSON(t, engine, "/api/v1/webhooks/wms", `{
		"dedup_id": "evt-1",
		"group": "order",
		"action": "created",
		"payload": {}
	}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
