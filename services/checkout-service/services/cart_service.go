package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, email string) (*models.CartView, *ServiceError)
	AddItem(ctx context.Context, email string, req *models.AddCartItemRequest) (*models.CartView, *ServiceError)
	RemoveItem(ctx context.Context, email string, itemID uuid.UUID) *ServiceError
}

type cartServiceImpl struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, logger *zap.Logger) CartService {
	return &cartServiceImpl{carts: carts, products: products, logger: logger}
}

// GetCart returns the cart lines joined with their products. The total only
// counts lines whose product still exists; checkout re-validates everything.
func (s *cartServiceImpl) GetCart(ctx context.Context, email string) (*models.CartView, *ServiceError) {
	items, err := s.carts.ListWithProducts(ctx, email)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("email", email), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load cart"}
	}

	view := &models.CartView{Items: items}
	for _, item := range items {
		view.ItemCount += item.Quantity
		if item.Product != nil {
			view.TotalPoints += int64(item.Quantity) * item.Product.PricePoints
		}
	}
	if view.Items == nil {
		view.Items = []models.CartItem{}
	}
	return view, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, email string, req *models.AddCartItemRequest) (*models.CartView, *ServiceError) {
	if req.Quantity < 1 {
		return nil, &ServiceError{StatusCode: 400, Message: "Quantity must be at least 1"}
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to fetch product", zap.String("product_id", req.ProductID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to add item"}
	}
	if !product.Purchasable() {
		return nil, &ServiceError{StatusCode: 409, Message: product.Name + " is not available"}
	}
	if product.SellerEmail == email {
		return nil, &ServiceError{StatusCode: 400, Message: "You cannot buy your own product"}
	}

	item := &models.CartItem{UserEmail: email, ProductID: product.ID, Quantity: req.Quantity}
	if err := s.carts.AddItem(ctx, item); err != nil {
		s.logger.Error("Failed to add cart item", zap.String("email", email), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to add item"}
	}

	return s.GetCart(ctx, email)
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, email string, itemID uuid.UUID) *ServiceError {
	if err := s.carts.RemoveItem(ctx, email, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Cart item not found"}
		}
		s.logger.Error("Failed to remove cart item", zap.String("item_id", itemID.String()), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to remove item"}
	}
	return nil
}
