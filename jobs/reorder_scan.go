package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/clinistock/clinistock/internal/jobs"
	"github.com/clinistock/clinistock/internal/masterdata/products"
)

const (
	// TaskStockReorderScan flags products whose on-hand stock fell below
	// the reorder point.
	TaskStockReorderScan = "stock:reorder_scan"
)

// NewReorderScanTask constructs an Asynq task for the reorder scan.
func NewReorderScanTask() *asynq.Task {
	return asynq.NewTask(TaskStockReorderScan, nil, asynq.Queue(QueueDefault))
}

// ReorderScanJob logs one warning per product below its reorder point.
type ReorderScanJob struct {
	productsSvc *products.Service
	logger      *slog.Logger
	metrics     *jobmetrics.Metrics
}

// NewReorderScanJob constructs the job. A nil metrics falls back to the
// default Prometheus registerer.
func NewReorderScanJob(productsSvc *products.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &ReorderScanJob{productsSvc: productsSvc, logger: logger, metrics: metrics}
}

// Handle processes TaskStockReorderScan tasks.
func (j *ReorderScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(TaskStockReorderScan)
	alerts, err := j.productsSvc.ReorderAlerts(ctx)
	if err != nil {
		return tracker.End(err)
	}
	for _, alert := range alerts {
		j.logger.Warn("product below reorder point",
			slog.Int64("product_id", alert.Product.ID),
			slog.String("code", alert.Product.Code),
			slog.Float64("on_hand", alert.OnHand),
			slog.Float64("reorder_point", alert.Product.ReorderPoint),
		)
	}
	j.metrics.AddAlerts("reorder", len(alerts))
	j.logger.Info("reorder scan finished", slog.Int("alerts", len(alerts)))
	return tracker.End(nil)
}
