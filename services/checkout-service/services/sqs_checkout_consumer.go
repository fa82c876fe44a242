package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"go.uber.org/zap"
)

// SQSCheckoutConsumer runs checkout requests queued on SQS through the same
// workflow as POST /checkout.
type SQSCheckoutConsumer struct {
	sqsConsumer *aws_pkg.SQSConsumer
	checkout    CheckoutService
	metrics     aws_pkg.MetricsRecorder
	logger      *zap.Logger
}

func NewSQSCheckoutConsumer(sqsConsumer *aws_pkg.SQSConsumer, checkout CheckoutService, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *SQSCheckoutConsumer {
	return &SQSCheckoutConsumer{
		sqsConsumer: sqsConsumer,
		checkout:    checkout,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start begins polling the checkout queue and blocks until ctx is done.
func (c *SQSCheckoutConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting checkout queue consumer")

	err := c.sqsConsumer.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("checkout queue polling stopped", zap.Error(err))
	}
}

// HandleMessage returns nil to acknowledge the message and an error to leave
// it on the queue for redelivery. Only failures that may succeed on retry
// are returned.
func (c *SQSCheckoutConsumer) HandleMessage(ctx context.Context, body string) error {
	// unwrap SNS envelope if present
	var snsEnvelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsEnvelope); err == nil && snsEnvelope.Message != "" {
		body = snsEnvelope.Message
	}

	var msg models.CheckoutRequestedMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		c.logger.Warn("discarding checkout message with invalid JSON", zap.Error(err))
		return nil
	}
	msg.BuyerEmail = strings.ToLower(strings.TrimSpace(msg.BuyerEmail))
	if msg.BuyerEmail == "" {
		c.logger.Warn("discarding checkout message without buyer_email")
		return nil
	}
	// Without a key a redelivered message would charge the buyer twice.
	if msg.IdempotencyKey == "" {
		c.logger.Warn("discarding checkout message without idempotency_key", zap.String("buyer", msg.BuyerEmail))
		return nil
	}

	c.record(aws_pkg.MetricSQSMessages)

	req := &models.CheckoutRequest{ShippingAddress: msg.ShippingAddress, Notes: msg.Notes}
	result, cerr := c.checkout.Checkout(ctx, msg.BuyerEmail, msg.IdempotencyKey, req)
	if cerr != nil {
		if cerr.Retryable() {
			c.logger.Warn("queued checkout will be retried",
				zap.String("buyer", msg.BuyerEmail),
				zap.String("kind", string(cerr.Kind)),
				zap.Error(cerr.Unwrap()),
			)
			return cerr
		}
		c.logger.Info("queued checkout rejected",
			zap.String("buyer", msg.BuyerEmail),
			zap.String("idempotency_key", msg.IdempotencyKey),
			zap.String("kind", string(cerr.Kind)),
			zap.String("reason", cerr.Message),
		)
		return nil
	}

	c.logger.Info("queued checkout processed",
		zap.String("buyer", msg.BuyerEmail),
		zap.String("checkout_id", result.CheckoutID.String()),
		zap.Bool("replayed", result.Replayed),
	)
	return nil
}

func (c *SQSCheckoutConsumer) record(metric string) {
	if c.metrics == nil || !c.metrics.IsEnabled() {
		return
	}
	go func() {
		metricCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.metrics.RecordCount(metricCtx, metric, map[string]string{"Service": serviceName})
	}()
}
