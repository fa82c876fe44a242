package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

type AccountService interface {
	Me(ctx context.Context, email string) (*models.Account, *ServiceError)
}

type accountServiceImpl struct {
	accounts repository.AccountRepository
	logger   *zap.Logger
}

func NewAccountService(accounts repository.AccountRepository, logger *zap.Logger) AccountService {
	return &accountServiceImpl{accounts: accounts, logger: logger}
}

func (s *accountServiceImpl) Me(ctx context.Context, email string) (*models.Account, *ServiceError) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Account not found"}
		}
		s.logger.Error("Failed to fetch account", zap.String("email", email), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch account"}
	}
	return account, nil
}
