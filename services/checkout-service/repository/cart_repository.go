package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	ListByUser(ctx context.Context, email string) ([]models.CartItem, error)
	ListWithProducts(ctx context.Context, email string) ([]models.CartItem, error)
	// AddItem inserts the line or, if the product is already in the cart,
	// increases its quantity.
	AddItem(ctx context.Context, item *models.CartItem) error
	RemoveItem(ctx context.Context, email string, id uuid.UUID) error
	DeleteItems(ctx context.Context, email string, ids []uuid.UUID) error
}

type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) CartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) ListByUser(ctx context.Context, email string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_email = ?", email).
		Order("created_at, id").
		Find(&items).Error
	return items, err
}

func (r *GormCartRepository) ListWithProducts(ctx context.Context, email string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_email = ?", email).
		Order("created_at, id").
		Find(&items).Error
	return items, err
}

func (r *GormCartRepository) AddItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_email"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
			}),
		}).
		Create(item).Error
}

func (r *GormCartRepository) RemoveItem(ctx context.Context, email string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_email = ?", id, email).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormCartRepository) DeleteItems(ctx context.Context, email string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_email = ? AND id IN ?", email, ids).
		Delete(&models.CartItem{}).Error
}
