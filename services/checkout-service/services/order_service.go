package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

// OrderService serves a buyer's order history. Orders are only ever created
// by the checkout workflow.
type OrderService interface {
	GetBuyerOrders(ctx context.Context, buyerEmail string, page, limit int) (*models.OrderListResponse, *ServiceError)
	GetOrderByID(ctx context.Context, buyerEmail string, orderID uuid.UUID) (*models.Order, *ServiceError)
}

type orderServiceImpl struct {
	orders repository.OrderRepository
	logger *zap.Logger
}

func NewOrderService(orders repository.OrderRepository, logger *zap.Logger) OrderService {
	return &orderServiceImpl{orders: orders, logger: logger}
}

// GetBuyerOrders retrieves paginated orders for a buyer, newest first.
func (s *orderServiceImpl) GetBuyerOrders(ctx context.Context, buyerEmail string, page, limit int) (*models.OrderListResponse, *ServiceError) {
	orders, total, err := s.orders.FindByBuyer(ctx, buyerEmail, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("buyer", buyerEmail), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}

	return &models.OrderListResponse{
		Orders: orders,
		Meta: models.MetaData{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

// GetOrderByID retrieves one of the buyer's orders with its items.
func (s *orderServiceImpl) GetOrderByID(ctx context.Context, buyerEmail string, orderID uuid.UUID) (*models.Order, *ServiceError) {
	order, err := s.orders.FindByIDAndBuyer(ctx, orderID, buyerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}
	return order, nil
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
