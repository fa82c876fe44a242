package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
)

// Reservation records what one reserve call changed. Before and After are nil
// when the product's stock is not tracked.
type Reservation struct {
	ProductID uuid.UUID
	Quantity  int
	Before    *int
	After     *int
	// External is true when the decrement happened outside the database
	// transaction and must be released explicitly on failure.
	External bool
}

// Decremented is the amount that has to be added back to restore Before.
func (r Reservation) Decremented() int {
	if r.Before == nil || r.After == nil {
		return 0
	}
	return *r.Before - *r.After
}

// InventoryReserver takes stock for one line item. products is bound to the
// checkout transaction.
type InventoryReserver interface {
	Reserve(ctx context.Context, products ProductRepository, product *models.Product, quantity int) (Reservation, error)
}

// InventoryCompensator is implemented by reservers whose reservations are not
// undone by aborting the transaction. Such a reserver also owns the stock
// level: products.inventory_count is only a mirror and its conditional
// decrement is the one stock check that counts.
type InventoryCompensator interface {
	Release(ctx context.Context, r Reservation) error
}

// GormInventoryReserver keeps stock on the products row.
type GormInventoryReserver struct{}

func NewGormInventoryReserver() *GormInventoryReserver {
	return &GormInventoryReserver{}
}

func (GormInventoryReserver) Reserve(ctx context.Context, products ProductRepository, product *models.Product, quantity int) (Reservation, error) {
	res := Reservation{ProductID: product.ID, Quantity: quantity}
	if !product.Tracked() {
		return res, products.IncrementSales(ctx, product.ID, quantity)
	}

	before := *product.InventoryCount
	if err := products.DecrementInventory(ctx, product.ID, quantity); err != nil {
		var shortage *StockShortageError
		if errors.As(err, &shortage) && shortage.Available < 0 {
			shortage.Available = before
		}
		return res, err
	}

	after := before - quantity
	if after < 0 {
		after = 0
	}
	res.Before = &before
	res.After = &after
	return res, nil
}
