package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	// LockByIDs reads the products with SELECT ... FOR UPDATE, locking rows in
	// ascending id order.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	// DecrementInventory takes quantity units out of stock and bumps
	// sales_count, provided at least quantity units remain.
	DecrementInventory(ctx context.Context, id uuid.UUID, quantity int) error
	IncrementSales(ctx context.Context, id uuid.UUID, quantity int) error
	// RecordExternalSale bumps sales_count and mirrors remaining, the stock
	// left in an external inventory store, into inventory_count.
	RecordExternalSale(ctx context.Context, id uuid.UUID, quantity, remaining int) error
	ListTracked(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Product, error)
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return translate(r.db.WithContext(ctx).Create(product).Error)
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := SortedIDs(ids)
	var products []models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) DecrementInventory(ctx context.Context, id uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND inventory_count IS NOT NULL AND inventory_count >= ?", id, quantity).
		Updates(map[string]interface{}{
			"inventory_count": gorm.Expr("GREATEST(inventory_count - ?, 0)", quantity),
			"sales_count":     gorm.Expr("sales_count + ?", quantity),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &StockShortageError{ProductID: id, Available: -1}
	}
	return nil
}

func (r *GormProductRepository) IncrementSales(ctx context.Context, id uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("sales_count", gorm.Expr("sales_count + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) RecordExternalSale(ctx context.Context, id uuid.UUID, quantity, remaining int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"inventory_count": remaining,
			"sales_count":     gorm.Expr("sales_count + ?", quantity),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTracked pages through products whose stock is tracked, in id order.
func (r *GormProductRepository) ListTracked(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("inventory_count IS NOT NULL AND id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&products).Error
	return products, err
}

// SortedIDs returns a de-duplicated copy of ids in ascending byte order, which
// matches Postgres uuid ordering.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}
