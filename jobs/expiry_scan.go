package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/clinistock/clinistock/internal/jobs"
	"github.com/clinistock/clinistock/internal/stock"
)

const (
	// TaskStockExpiryScan flags lots approaching their expiry date.
	TaskStockExpiryScan = "stock:expiry_scan"

	defaultExpiryHorizonDays = 30
	expiryScanBatch          = 200
)

// ExpiryScanPayload configures how far ahead the scan looks.
type ExpiryScanPayload struct {
	HorizonDays int `json:"horizon_days"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(horizonDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{HorizonDays: horizonDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// ExpiryScanJob lists lots expiring within the horizon and logs a warning
// per lot that still holds quantity.
type ExpiryScanJob struct {
	stockSvc *stock.Service
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewExpiryScanJob constructs the job. A nil metrics falls back to the
// default Prometheus registerer.
func NewExpiryScanJob(stockSvc *stock.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &ExpiryScanJob{stockSvc: stockSvc, logger: logger, metrics: metrics}
}

// Handle processes TaskStockExpiryScan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskStockExpiryScan)
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.HorizonDays <= 0 {
		payload.HorizonDays = defaultExpiryHorizonDays
	}
	horizon := time.Now().AddDate(0, 0, payload.HorizonDays)
	lots, err := j.stockSvc.ListExpiring(ctx, horizon, expiryScanBatch)
	if err != nil {
		return tracker.End(err)
	}
	flagged := 0
	for _, lot := range lots {
		if lot.Exhausted() {
			continue
		}
		flagged++
		j.logger.Warn("lot approaching expiry",
			slog.Int64("lot_id", lot.ID),
			slog.String("number", lot.Number),
			slog.Float64("quantity", lot.Quantity),
			slog.Time("expires_at", lot.ExpiresAt),
		)
	}
	j.metrics.AddAlerts("expiry", flagged)
	j.logger.Info("expiry scan finished",
		slog.Int("horizon_days", payload.HorizonDays),
		slog.Int("flagged", flagged),
	)
	return tracker.End(nil)
}
