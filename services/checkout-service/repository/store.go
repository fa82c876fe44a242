package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle. A Store
// obtained inside WithinTx is bound to that transaction.
type Store interface {
	Accounts() AccountRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Checkouts() CheckoutRepository
	Notifications() NotificationRepository

	// WithinTx runs fn in a transaction; any error from fn rolls back every write.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	// Nested runs fn in a savepoint of the current transaction; an error from
	// fn undoes only fn's writes.
	Nested(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by db. The postgres connection must be
// opened with TranslateError enabled for ErrDuplicate to be reported.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Accounts() AccountRepository { return NewGormAccountRepository(s.db) }
func (s *GormStore) Products() ProductRepository { return NewGormProductRepository(s.db) }
func (s *GormStore) Carts() CartRepository       { return NewGormCartRepository(s.db) }
func (s *GormStore) Orders() OrderRepository     { return NewGormOrderRepository(s.db) }
func (s *GormStore) Checkouts() CheckoutRepository {
	return NewGormCheckoutRepository(s.db)
}
func (s *GormStore) Notifications() NotificationRepository {
	return NewGormNotificationRepository(s.db)
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Nested relies on gorm turning a Transaction call on a transaction handle
// into SAVEPOINT / ROLLBACK TO SAVEPOINT.
func (s *GormStore) Nested(ctx context.Context, fn func(tx Store) error) error {
	return s.WithinTx(ctx, fn)
}
