package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/wms-sync/internal/domain/order"
	"github.com/erp/wms-sync/internal/domain/sync"
)

// ExportNotifier reacts to local order changes by queueing an order export
// job, so a locally created or edited order reaches the WMS on the next
// drain instead of waiting for the scheduled batch. Remote-originated saves
// never reach it; the coordinator suppresses notifications on those.
type ExportNotifier struct {
	enqueuer JobEnqueuer
	logger   *zap.Logger
}

// JobEnqueuer queues a batch sync job of the given type
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, jobType sync.SyncJobType) (bool, error)
}

func NewExportNotifier(enqueuer JobEnqueuer, logger *zap.Logger) *ExportNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportNotifier{enqueuer: enqueuer, logger: logger}
}

// OrderChanged queues an export job. Failures are logged, not returned; the
// scheduled batch sync covers any missed nudge.
func (n *ExportNotifier) OrderChanged(ctx context.Context, o *order.Order, source string) {
	enqueued, err := n.enqueuer.EnqueueJob(ctx, sync.SyncJobTypeOrderExport)
	if err != nil {
		n.logger.Error("failed to enqueue order export after local change",
			zap.String("order_number", o.Number),
			zap.String("source", source),
			zap.Error(err),
		)
		return
	}
	if enqueued {
		n.logger.Debug("queued order export after local change",
			zap.String("order_number", o.Number),
			zap.String("source", source),
		)
	}
}
