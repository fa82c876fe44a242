package repository

import (
	"context"
	"fmt"

	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// LockByEmail reads the account with SELECT ... FOR UPDATE.
	LockByEmail(ctx context.Context, email string) (*models.Account, error)
	// Debit subtracts amount only if the balance covers it.
	Debit(ctx context.Context, email string, amount int64) error
	Credit(ctx context.Context, email string, amount int64) error
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) Create(ctx context.Context, account *models.Account) error {
	return translate(r.db.WithContext(ctx).Create(account).Error)
}

func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *GormAccountRepository) LockByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", email).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *GormAccountRepository) Debit(ctx context.Context, email string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative, got %d", amount)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("email = ? AND balance_points >= ?", email, amount).
		Update("balance_points", gorm.Expr("balance_points - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *GormAccountRepository) Credit(ctx context.Context, email string, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("email = ?", email).
		Update("balance_points", gorm.Expr("balance_points + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
