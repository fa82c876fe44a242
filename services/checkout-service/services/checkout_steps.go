package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

type checkoutLine struct {
	item    models.CartItem
	product *models.Product
}

func (l checkoutLine) total() int64 {
	return int64(l.item.Quantity) * l.product.PricePoints
}

type validatedCart struct {
	lines []checkoutLine
	total int64
}

// validateCheckout checks the cart against freshly locked product and account
// rows. It never writes. With checkStock false the products' inventory_count
// is only a mirror and the reserver does the stock check.
func validateCheckout(account *models.Account, items []models.CartItem, products map[uuid.UUID]*models.Product, checkStock bool) (*validatedCart, *CheckoutError) {
	if len(items) == 0 {
		return nil, &CheckoutError{Kind: KindEmptyCart, Message: "Your cart is empty"}
	}

	cart := &validatedCart{lines: make([]checkoutLine, 0, len(items))}
	requested := make(map[uuid.UUID]int, len(items))

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, &CheckoutError{
				Kind:      KindProductUnavailable,
				Message:   "A product in your cart is no longer available",
				ProductID: item.ProductID,
			}
		}
		if !product.Purchasable() {
			return nil, &CheckoutError{
				Kind:      KindProductUnavailable,
				Message:   fmt.Sprintf("%s is no longer available", product.Name),
				ProductID: product.ID,
			}
		}
		if item.Quantity < 1 {
			return nil, &CheckoutError{
				Kind:      KindInvalidQuantity,
				Message:   fmt.Sprintf("Invalid quantity for %s", product.Name),
				ProductID: product.ID,
			}
		}

		requested[product.ID] += item.Quantity
		if checkStock && product.Tracked() && *product.InventoryCount < requested[product.ID] {
			return nil, shortageError(product, *product.InventoryCount)
		}

		line := checkoutLine{item: item, product: product}
		cart.lines = append(cart.lines, line)
		cart.total += line.total()
	}

	if account.BalancePoints < cart.total {
		return nil, &CheckoutError{
			Kind:    KindInsufficientBalance,
			Message: fmt.Sprintf("Insufficient balance. You need %d points but have %d.", cart.total, account.BalancePoints),
		}
	}
	return cart, nil
}

func shortageError(product *models.Product, available int) *CheckoutError {
	if available < 0 {
		available = 0
	}
	return &CheckoutError{
		Kind:      KindInsufficientInventory,
		Message:   fmt.Sprintf("Only %d of %s available", available, product.Name),
		ProductID: product.ID,
	}
}

// reserveInventory reserves every line in cart order and stops at the first
// failure. Successful reservations are appended to the ledger as they happen.
func (s *checkoutService) reserveInventory(ctx context.Context, tx repository.Store, att *checkoutAttempt, cart *validatedCart) error {
	for _, line := range cart.lines {
		res, err := s.reserver.Reserve(ctx, tx.Products(), line.product, line.item.Quantity)
		if err != nil {
			var shortage *repository.StockShortageError
			if errors.As(err, &shortage) {
				available := shortage.Available
				if available < 0 && !s.externalStock && line.product.Tracked() {
					available = *line.product.InventoryCount
				}
				return shortageError(line.product, available)
			}
			return fmt.Errorf("reserve %s: %w", line.product.ID, err)
		}
		att.ledger.reservations = append(att.ledger.reservations, res)
		att.logger.Debug("inventory reserved",
			zap.String("product_id", line.product.ID.String()),
			zap.Int("quantity", line.item.Quantity),
			zap.Bool("external", res.External),
		)
	}
	return nil
}

func debitBalance(ctx context.Context, tx repository.Store, att *checkoutAttempt, account *models.Account, amount int64) error {
	if err := tx.Accounts().Debit(ctx, account.Email, amount); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return &CheckoutError{
				Kind:    KindInsufficientBalance,
				Message: fmt.Sprintf("Insufficient balance. You need %d points but have %d.", amount, account.BalancePoints),
			}
		}
		return fmt.Errorf("debit balance: %w", err)
	}
	att.ledger.debited = true
	att.ledger.balanceBefore = account.BalancePoints
	att.ledger.debitAmount = amount
	return nil
}

type sellerGroup struct {
	sellerEmail string
	lines       []checkoutLine
	total       int64
}

// groupBySeller keeps sellers in the order they first appear in the cart.
func groupBySeller(lines []checkoutLine) []*sellerGroup {
	var groups []*sellerGroup
	index := make(map[string]*sellerGroup)
	for _, line := range lines {
		g, ok := index[line.product.SellerEmail]
		if !ok {
			g = &sellerGroup{sellerEmail: line.product.SellerEmail}
			index[line.product.SellerEmail] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, line)
		g.total += line.total()
	}
	return groups
}

// materializeOrders creates one pending order per seller group.
func materializeOrders(ctx context.Context, orders repository.OrderRepository, checkout *models.Checkout, groups []*sellerGroup, req *models.CheckoutRequest) ([]models.Order, error) {
	created := make([]models.Order, 0, len(groups))
	for i, g := range groups {
		order := models.Order{
			ID:              uuid.New(),
			OrderNumber:     newOrderNumber(),
			CheckoutID:      checkout.ID,
			Position:        i,
			BuyerEmail:      checkout.BuyerEmail,
			SellerEmail:     g.sellerEmail,
			TotalPoints:     g.total,
			Status:          models.OrderStatusPending,
			ShippingAddress: req.ShippingAddress,
			Notes:           req.Notes,
			OrderItems:      make([]models.OrderItem, 0, len(g.lines)),
		}
		for _, line := range g.lines {
			order.OrderItems = append(order.OrderItems, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductID:   line.product.ID,
				ProductName: line.product.Name,
				Quantity:    line.item.Quantity,
				PricePoints: line.product.PricePoints,
			})
		}
		if err := orders.CreateWithItems(ctx, &order); err != nil {
			return nil, fmt.Errorf("create order for seller %s: %w", g.sellerEmail, err)
		}
		created = append(created, order)
	}
	return created, nil
}

func newOrderNumber() string {
	return "ORD-" + time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// clearCart removes the purchased lines inside a savepoint. A failure is
// logged and does not fail the checkout.
func clearCart(ctx context.Context, tx repository.Store, att *checkoutAttempt, items []models.CartItem) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	err := tx.Nested(ctx, func(sp repository.Store) error {
		return sp.Carts().DeleteItems(ctx, att.buyerEmail, ids)
	})
	if err != nil {
		att.logger.Warn("cart clear failed, orders kept", zap.Error(err))
	}
}
