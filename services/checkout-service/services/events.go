package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	"github.com/yashrajoria/beacon-market/services/checkout-service/kafka"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"go.uber.org/zap"
)

// OrderEventPublisher announces committed checkouts. It is best-effort:
// failures are logged and never reach the buyer.
type OrderEventPublisher interface {
	PublishCheckout(ctx context.Context, buyerEmail string, result *models.CheckoutResult)
}

type orderEventFanout struct {
	sns         aws_pkg.SNSPublisher
	snsTopicArn string
	producer    kafka.ProducerAPI
	receipts    aws_pkg.ObjectWriter
	metrics     aws_pkg.MetricsRecorder
	logger      *zap.Logger
}

// NewOrderEventPublisher builds the fan-out. Any of sns, producer and
// receipts may be nil to disable that channel.
func NewOrderEventPublisher(
	sns aws_pkg.SNSPublisher,
	snsTopicArn string,
	producer kafka.ProducerAPI,
	receipts aws_pkg.ObjectWriter,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) OrderEventPublisher {
	return &orderEventFanout{
		sns:         sns,
		snsTopicArn: snsTopicArn,
		producer:    producer,
		receipts:    receipts,
		metrics:     metrics,
		logger:      logger,
	}
}

func (p *orderEventFanout) PublishCheckout(ctx context.Context, buyerEmail string, result *models.CheckoutResult) {
	for i := range result.Orders {
		order := &result.Orders[i]
		body, err := json.Marshal(orderCreatedEvent(order))
		if err != nil {
			p.logger.Error("failed to marshal order event", zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}

		if p.sns != nil && p.snsTopicArn != "" {
			if err := p.sns.Publish(ctx, p.snsTopicArn, body); err != nil {
				p.failed(ctx, "sns", order, err)
			}
		}
		if p.producer != nil {
			if err := p.producer.Publish(ctx, order.ID.String(), body); err != nil {
				p.failed(ctx, "kafka", order, err)
			}
		}
	}

	if p.receipts != nil {
		receipt := models.Receipt{
			CheckoutID:   result.CheckoutID.String(),
			BuyerEmail:   buyerEmail,
			TotalPoints:  result.TotalPoints,
			BalanceAfter: result.BalancePoints,
			Orders:       result.Orders,
			CreatedAt:    time.Now().UTC(),
		}
		body, err := json.Marshal(receipt)
		if err == nil {
			err = p.receipts.PutJSON(ctx, receiptKey(buyerEmail, result), body)
		}
		if err != nil {
			p.logger.Warn("failed to archive receipt", zap.String("checkout_id", receipt.CheckoutID), zap.Error(err))
		}
	}
}

func (p *orderEventFanout) failed(ctx context.Context, channel string, order *models.Order, err error) {
	p.logger.Warn("order event publish failed",
		zap.String("channel", channel),
		zap.String("order_id", order.ID.String()),
		zap.Error(err),
	)
	if p.metrics != nil && p.metrics.IsEnabled() {
		_ = p.metrics.RecordCount(ctx, aws_pkg.MetricEventPublishFailure, map[string]string{"Service": serviceName, "Channel": channel})
	}
}

func orderCreatedEvent(order *models.Order) models.OrderCreatedEvent {
	items := make([]models.OrderEventItem, 0, len(order.OrderItems))
	for _, it := range order.OrderItems {
		items = append(items, models.OrderEventItem{
			ProductID:   it.ProductID.String(),
			Quantity:    it.Quantity,
			PricePoints: it.PricePoints,
		})
	}
	return models.OrderCreatedEvent{
		EventType:   models.EventOrderCreated,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		CheckoutID:  order.CheckoutID.String(),
		BuyerEmail:  order.BuyerEmail,
		SellerEmail: order.SellerEmail,
		TotalPoints: order.TotalPoints,
		Items:       items,
		Timestamp:   time.Now().UTC(),
	}
}

func receiptKey(buyerEmail string, result *models.CheckoutResult) string {
	return fmt.Sprintf("receipts/%s/%s/%s.json", time.Now().UTC().Format("2006/01/02"), buyerEmail, result.CheckoutID)
}
