package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// CreateWithItems inserts the order and its OrderItems in one statement batch.
	CreateWithItems(ctx context.Context, order *models.Order) error
	FindByBuyer(ctx context.Context, email string, page, limit int) ([]models.Order, int64, error)
	FindByIDAndBuyer(ctx context.Context, orderID uuid.UUID, email string) (*models.Order, error)
	FindByCheckoutID(ctx context.Context, checkoutID uuid.UUID) ([]models.Order, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) CreateWithItems(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

// FindByBuyer retrieves a buyer's orders, newest first.
func (r *GormOrderRepository) FindByBuyer(ctx context.Context, email string, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("buyer_email = ?", email).
		Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) FindByIDAndBuyer(ctx context.Context, orderID uuid.UUID, email string) (*models.Order, error) {
	var order models.Order

	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("id = ? AND buyer_email = ?", orderID, email).
		First(&order).Error; err != nil {
		return nil, translate(err)
	}

	return &order, nil
}

func (r *GormOrderRepository) FindByCheckoutID(ctx context.Context, checkoutID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("checkout_id = ?", checkoutID).
		Order("position").
		Find(&orders).Error
	return orders, err
}
