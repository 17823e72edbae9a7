package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
)

type fakeEnqueuer struct {
	types []sync.SyncJobType
	err   error
}

func (f *fakeEnqueuer) EnqueueJob(_ context.Context, jobType sync.SyncJobType) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.types = append(f.types, jobType)
	return true, nil
}

func TestExportNotifier_QueuesExportJob(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	notifier := NewExportNotifier(enqueuer, nil)

	notifier.OrderChanged(context.Background(), &order.Order{Number: "ORD-1"}, "local")

	assert.Equal(t, []sync.SyncJobType{sync.SyncJobTypeOrderExport}, enqueuer.types)
}

func TestExportNotifier_EnqueueErrorDoesNotPanic(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("db down")}
	notifier := NewExportNotifier(enqueuer, nil)

	notifier.OrderChanged(context.Background(), &order.Order{Number: "ORD-1"}, "local")

	assert.Empty(t, enqueuer.types)
}
