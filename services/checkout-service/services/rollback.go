package services

import (
	"context"
	"time"

	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

type rollbackReport struct {
	Reverted int // undone by the transaction abort
	Released int // released explicitly
	Failed   int
}

// rollbackHandler undoes a failed attempt. By the time it runs the database
// transaction has been rolled back, which already restored every products
// row and the buyer's balance; reservations held outside the transaction are
// released here. Each release is independent and failures are only logged.
type rollbackHandler struct {
	compensator repository.InventoryCompensator
	metrics     aws_pkg.MetricsRecorder
	timeout     time.Duration
}

func newRollbackHandler(reserver repository.InventoryReserver, metrics aws_pkg.MetricsRecorder) *rollbackHandler {
	h := &rollbackHandler{metrics: metrics, timeout: 10 * time.Second}
	if c, ok := reserver.(repository.InventoryCompensator); ok {
		h.compensator = c
	}
	return h
}

func (h *rollbackHandler) run(ctx context.Context, att *checkoutAttempt) rollbackReport {
	var report rollbackReport

	// keep compensating even if the request was cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	for _, res := range att.ledger.reservations {
		fields := []zap.Field{
			zap.String("product_id", res.ProductID.String()),
			zap.Int("quantity", res.Quantity),
		}
		if res.Before != nil {
			fields = append(fields, zap.Int("restore_to", *res.Before))
		}

		if !res.External {
			report.Reverted++
			att.logger.Info("inventory restored by transaction rollback", fields...)
			continue
		}
		if h.compensator == nil {
			report.Failed++
			att.logger.Error("no compensator for external reservation", fields...)
			continue
		}
		if err := h.compensator.Release(ctx, res); err != nil {
			report.Failed++
			att.logger.Error("failed to restore inventory", append(fields, zap.Error(err))...)
			h.record(ctx, aws_pkg.MetricRollbackFailures)
			continue
		}
		report.Released++
		h.record(ctx, aws_pkg.MetricInventoryReleased)
		att.logger.Info("inventory released", fields...)
	}

	if att.ledger.debited {
		att.logger.Info("balance restored by transaction rollback",
			zap.Int64("restore_to", att.ledger.balanceBefore),
			zap.Int64("amount", att.ledger.debitAmount),
		)
	}
	return report
}

func (h *rollbackHandler) record(ctx context.Context, metric string) {
	if h.metrics == nil || !h.metrics.IsEnabled() {
		return
	}
	_ = h.metrics.RecordCount(ctx, metric, map[string]string{"Service": serviceName})
}
