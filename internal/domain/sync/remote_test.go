package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/wms-sync/internal/domain/order"
)

func TestMapRemoteStatus(t *testing.T) {
	tests := []struct {
		remote   string
		expected order.Status
	}{
		{"created", order.StatusProcessing},
		{"plannable", order.StatusProcessing},
		{"planned", order.StatusProcessing},
		{"processing", order.StatusProcessing},
		{"partially_shipped", order.StatusProcessing},
		{"shipped", order.StatusCompleted},
		{"on_hold", order.StatusOnHold},
		{"problem", order.StatusOnHold},
		{"backorder", order.StatusOnHold},
		{"awaiting_documents", order.StatusOnHold},
		{"restock", order.StatusOnHold},
		{"invalid_address", order.StatusOnHold},
		{"cancelled", order.StatusCancelled},
		{"invalid", order.StatusCancelled},
		{"some_future_status", order.StatusProcessing},
		{"", order.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapRemoteStatus(tt.remote))
		})
	}
}
