package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/wareflow/wareflow/internal/jobs"
	"github.com/wareflow/wareflow/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile verifies stock conservation per (product, vendor)
	// pair and logs drift.
	TaskStockReconcile = "stock:reconcile"
	// TaskIdempotencyCleanup sweeps expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewStockReconcileTask constructs the reconciliation task.
func NewStockReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskStockReconcile, nil)
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionSeconds: int64(retention.Seconds())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewStockReconcileHandler returns the handler that checks, pair by pair,
// that booked inward quantity equals remaining lot stock plus the quantity
// held by non-cancelled orders. Drift means a mutation bypassed the
// allocator and is logged for investigation, never auto-corrected.
func NewStockReconcileHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (resultErr error) {
		tracker := defaultJobMetrics.Track(TaskStockReconcile)
		defer func() {
			resultErr = tracker.End(resultErr)
		}()

		rows, err := pool.Query(ctx, `
SELECT l.product_id,
       COALESCE(l.vendor_id, 0) AS vendor_id,
       SUM(l.inward_qty)        AS inward_total,
       SUM(l.stock_quantity)    AS available,
       COALESCE((
         SELECT SUM(o.quantity) FROM orders o
         WHERE o.product_id = l.product_id
           AND o.vendor_id IS NOT DISTINCT FROM l.vendor_id
           AND o.approval_status <> 'CANCELLED'
       ), 0) AS held
FROM inventory_lots l
GROUP BY l.product_id, l.vendor_id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		var pairs, drifted int
		for rows.Next() {
			var productID, vendorID, inwardTotal, available, held int64
			if err := rows.Scan(&productID, &vendorID, &inwardTotal, &available, &held); err != nil {
				return err
			}
			pairs++
			if drift := inwardTotal - available - held; drift != 0 {
				drifted++
				defaultJobMetrics.AddDrift(productID, vendorID, drift)
				logger.Warn("stock drift detected",
					slog.Int64("product_id", productID),
					slog.Int64("vendor_id", vendorID),
					slog.Int64("inward_total", inwardTotal),
					slog.Int64("available", available),
					slog.Int64("held_by_orders", held),
					slog.Int64("drift", drift),
				)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		logger.Info("stock reconcile finished",
			slog.Int("pairs", pairs),
			slog.Int("drifted", drifted),
		)
		return nil
	}
}

// NewIdempotencyCleanupHandler returns the retention sweep handler.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (resultErr error) {
		tracker := defaultJobMetrics.Track(TaskIdempotencyCleanup)
		defer func() {
			resultErr = tracker.End(resultErr)
		}()

		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionSeconds) * time.Second
		if retention <= 0 {
			retention = 24 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		return nil
	}
}
