package services

import (
	"context"
	"fmt"

	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

type NotificationService interface {
	OrderNotifier
	List(ctx context.Context, email string, page, pageSize int) ([]models.Notification, int64, *ServiceError)
}

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{repo: repo, logger: logger}
}

// NotifyOrdersPlaced tells each seller about their order and the buyer about
// the checkout as a whole. Failures are logged; the orders stand regardless.
func (s *notificationServiceImpl) NotifyOrdersPlaced(ctx context.Context, buyerEmail string, orders []models.Order) {
	if len(orders) == 0 {
		return
	}

	for _, order := range orders {
		n := &models.Notification{
			UserEmail: order.SellerEmail,
			Type:      models.NotificationTypeOrderReceived,
			Title:     "New order received",
			Message:   fmt.Sprintf("Order %s: %d item(s) for %d points", order.OrderNumber, len(order.OrderItems), order.TotalPoints),
			Link:      "/orders/" + order.ID.String(),
		}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn("Failed to notify seller",
				zap.String("seller", order.SellerEmail),
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}

	var total int64
	for _, order := range orders {
		total += order.TotalPoints
	}
	n := &models.Notification{
		UserEmail: buyerEmail,
		Type:      models.NotificationTypeOrderPlaced,
		Title:     "Order placed",
		Message:   fmt.Sprintf("%d order(s) placed for %d points", len(orders), total),
		Link:      "/orders",
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("Failed to notify buyer", zap.String("buyer", buyerEmail), zap.Error(err))
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, email string, page, pageSize int) ([]models.Notification, int64, *ServiceError) {
	items, total, err := s.repo.FindByUser(ctx, email, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to fetch notifications", zap.String("email", email), zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to fetch notifications"}
	}
	return items, total, nil
}
