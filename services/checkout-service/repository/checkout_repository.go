package repository

import (
	"context"

	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"gorm.io/gorm"
)

type CheckoutRepository interface {
	Create(ctx context.Context, checkout *models.Checkout) error
	FindByKey(ctx context.Context, email, idempotencyKey string) (*models.Checkout, error)
}

type GormCheckoutRepository struct {
	db *gorm.DB
}

func NewGormCheckoutRepository(db *gorm.DB) CheckoutRepository {
	return &GormCheckoutRepository{db: db}
}

func (r *GormCheckoutRepository) Create(ctx context.Context, checkout *models.Checkout) error {
	return translate(r.db.WithContext(ctx).Omit("Orders").Create(checkout).Error)
}

func (r *GormCheckoutRepository) FindByKey(ctx context.Context, email, idempotencyKey string) (*models.Checkout, error) {
	var checkout models.Checkout
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Orders.OrderItems").
		Where("buyer_email = ? AND idempotency_key = ?", email, idempotencyKey).
		First(&checkout).Error
	if err != nil {
		return nil, translate(err)
	}
	return &checkout, nil
}
