package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderSyncState_ShouldSkipProcessing(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Minute)
	stale := now.Add(-10 * time.Minute)

	tests := []struct {
		name            string
		state           OrderSyncStateValue
		lastProcessedAt *time.Time
		skip            bool
	}{
		{"pending is eligible", OrderStatePending, nil, false},
		{"processing is eligible", OrderStateProcessing, nil, false},
		{"failed is eligible", OrderStateFailed, nil, false},
		{"exported is terminal", OrderStateExported, nil, true},
		{"synced from remote is terminal", OrderStateSyncedFromRemote, nil, true},
		{"skipped is terminal", OrderStateSkipped, nil, true},
		{"webhook processed inside cooldown", OrderStateWebhookProcessed, &recent, true},
		{"webhook processed past cooldown", OrderStateWebhookProcessed, &stale, false},
		{"webhook processed without timestamp", OrderStateWebhookProcessed, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &OrderSyncState{State: tt.state, LastProcessedAt: tt.lastProcessedAt}
			assert.Equal(t, tt.skip, s.ShouldSkipProcessing(now, DefaultReprocessCooldown))
		})
	}
}

func TestOrderSyncState_Transitions(t *testing.T) {
	t.Run("mark exported stores remote id and source", func(t *testing.T) {
		s := NewOrderSyncState(uuid.New())
		s.MarkExported("wms-9", SourceBatch)
		assert.Equal(t, OrderStateExported, s.State)
		assert.Equal(t, "wms-9", s.RemoteOrderID)
		assert.Equal(t, SourceBatch, s.Source)
		assert.NotNil(t, s.LastProcessedAt)
	})

	t.Run("mark webhook processed keeps existing remote id", func(t *testing.T) {
		s := NewOrderSyncState(uuid.New())
		s.RemoteOrderID = "wms-9"
		s.MarkWebhookProcessed("")
		assert.Equal(t, OrderStateWebhookProcessed, s.State)
		assert.Equal(t, "wms-9", s.RemoteOrderID)
		assert.Equal(t, SourceWebhook, s.Source)
	})

	t.Run("mark failed records the error", func(t *testing.T) {
		s := NewOrderSyncState(uuid.New())
		s.MarkFailed("variant lookup failed", SourceWebhook)
		assert.Equal(t, OrderStateFailed, s.State)
		assert.Equal(t, "variant lookup failed", s.ErrorMessage)
	})

	t.Run("transitions are last-writer-wins", func(t *testing.T) {
		s := NewOrderSyncState(uuid.New())
		s.MarkExported("wms-9", SourceBatch)
		s.MarkWebhookProcessed("wms-9")
		assert.Equal(t, OrderStateWebhookProcessed, s.State)
	})

	t.Run("reset clears terminal state and error", func(t *testing.T) {
		s := NewOrderSyncState(uuid.New())
		s.MarkFailed("boom", SourceManual)
		s.ResetToPending()
		assert.Equal(t, OrderStatePending, s.State)
		assert.Empty(t, s.ErrorMessage)
	})
}
