package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrDuplicate             = errors.New("duplicate record")
	ErrInventoryExists       = errors.New("inventory item already exists")
)

// StockShortageError reports a reservation that lost its compare-and-swap.
// Available is -1 when the store could not say how much stock is left.
type StockShortageError struct {
	ProductID uuid.UUID
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient inventory for product %s (available %d)", e.ProductID, e.Available)
}

func (e *StockShortageError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
