package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	aws_pkg "github.com/yashrajoria/beacon-market/pkg/aws"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const serviceName = "checkout-service"

// CheckoutService turns a buyer's cart into one order per seller, debiting
// the buyer's points and taking the stock, or changes nothing at all.
type CheckoutService interface {
	// Checkout runs one attempt. A repeated idempotencyKey for the same buyer
	// returns the first committed result instead of charging again. An empty
	// key makes the attempt single-use.
	Checkout(ctx context.Context, buyerEmail, idempotencyKey string, req *models.CheckoutRequest) (*models.CheckoutResult, *CheckoutError)
}

// OrderNotifier tells sellers about new orders. Best-effort.
type OrderNotifier interface {
	NotifyOrdersPlaced(ctx context.Context, buyerEmail string, orders []models.Order)
}

type CheckoutOptions struct {
	// Guard is optional; without it concurrent attempts by one buyer are
	// serialized by the account row lock alone.
	Guard     repository.CheckoutGuard
	LockTTL   time.Duration
	ResultTTL time.Duration
	Events    OrderEventPublisher
	Notifier  OrderNotifier
	Metrics   aws_pkg.MetricsRecorder
}

type checkoutService struct {
	store    repository.Store
	reserver repository.InventoryReserver
	// externalStock is set when the reserver owns the stock level
	externalStock bool
	rollback      *rollbackHandler
	opts          CheckoutOptions
	inflight      singleflight.Group
	logger        *zap.Logger
}

func NewCheckoutService(store repository.Store, reserver repository.InventoryReserver, opts CheckoutOptions, logger *zap.Logger) CheckoutService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	_, external := reserver.(repository.InventoryCompensator)
	return &checkoutService{
		store:         store,
		reserver:      reserver,
		externalStock: external,
		rollback:      newRollbackHandler(reserver, opts.Metrics),
		opts:          opts,
		logger:        logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, buyerEmail, idempotencyKey string, req *models.CheckoutRequest) (*models.CheckoutResult, *CheckoutError) {
	buyerEmail = strings.ToLower(strings.TrimSpace(buyerEmail))
	if buyerEmail == "" {
		return nil, &CheckoutError{Kind: KindAccountNotFound, Message: "Buyer identity is required"}
	}
	if req == nil {
		req = &models.CheckoutRequest{}
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	// Duplicate submissions racing on this replica share one attempt.
	v, err, _ := s.inflight.Do(buyerEmail+"\x00"+idempotencyKey, func() (interface{}, error) {
		res, cerr := s.checkout(ctx, buyerEmail, idempotencyKey, req)
		if cerr != nil {
			return nil, cerr
		}
		return res, nil
	})
	if err != nil {
		return nil, asCheckoutError(err)
	}
	res := *v.(*models.CheckoutResult)
	return &res, nil
}

func (s *checkoutService) checkout(ctx context.Context, buyerEmail, key string, req *models.CheckoutRequest) (*models.CheckoutResult, *CheckoutError) {
	if cached := s.cachedResult(ctx, buyerEmail, key); cached != nil {
		s.record(ctx, aws_pkg.MetricCheckoutsReplayed, 1)
		return cached, nil
	}

	if s.opts.Guard != nil {
		release, ok, err := s.opts.Guard.Acquire(ctx, buyerEmail, s.opts.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("checkout lock unavailable, relying on row locks", zap.String("buyer", buyerEmail), zap.Error(err))
		case !ok:
			return nil, &CheckoutError{Kind: KindInProgress, Message: "A checkout is already in progress"}
		default:
			defer release()
		}
	}

	start := time.Now()
	att := newCheckoutAttempt(buyerEmail, key, s.logger)
	checkoutID := uuid.New()
	var result *models.CheckoutResult

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		prior, err := tx.Checkouts().FindByKey(ctx, buyerEmail, key)
		if err == nil {
			result = resultFromCheckout(prior)
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup idempotency key: %w", err)
		}

		result, err = s.run(ctx, tx, att, checkoutID, req)
		return err
	})

	if err != nil && errors.Is(err, repository.ErrDuplicate) {
		// another replica committed the same key first
		if prior, lookupErr := s.store.Checkouts().FindByKey(ctx, buyerEmail, key); lookupErr == nil {
			s.abort(ctx, att)
			s.record(ctx, aws_pkg.MetricCheckoutsReplayed, 1)
			return resultFromCheckout(prior), nil
		}
	}
	if err != nil {
		return nil, s.finishFailed(ctx, att, err)
	}
	if result.Replayed {
		s.record(ctx, aws_pkg.MetricCheckoutsReplayed, 1)
		return result, nil
	}

	att.transition(StateDone)
	att.logger.Info("checkout completed",
		zap.String("checkout_id", result.CheckoutID.String()),
		zap.Int("orders", len(result.Orders)),
		zap.Int64("total_points", result.TotalPoints),
	)
	s.afterCommit(ctx, buyerEmail, key, result, time.Since(start))
	return result, nil
}

// run executes Validating through ClearingCart inside tx.
func (s *checkoutService) run(ctx context.Context, tx repository.Store, att *checkoutAttempt, checkoutID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResult, error) {
	att.transition(StateValidating)

	items, err := tx.Carts().ListByUser(ctx, att.buyerEmail)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, &CheckoutError{Kind: KindEmptyCart, Message: "Your cart is empty"}
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := tx.Products().LockByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	account, err := tx.Accounts().LockByEmail(ctx, att.buyerEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &CheckoutError{Kind: KindAccountNotFound, Message: "Account not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}

	// A concurrent attempt with the same key may have committed while we
	// waited for the account lock.
	if prior, err := tx.Checkouts().FindByKey(ctx, att.buyerEmail, att.idempotencyKey); err == nil {
		return resultFromCheckout(prior), nil
	}

	cart, cerr := validateCheckout(account, items, byID, !s.externalStock)
	if cerr != nil {
		return nil, cerr
	}

	att.transition(StateReserving)
	if err := s.reserveInventory(ctx, tx, att, cart); err != nil {
		return nil, err
	}

	att.transition(StateDebiting)
	if err := debitBalance(ctx, tx, att, account, cart.total); err != nil {
		return nil, err
	}

	att.transition(StateCreatingOrders)
	groups := groupBySeller(cart.lines)
	record := &models.Checkout{
		ID:             checkoutID,
		BuyerEmail:     att.buyerEmail,
		IdempotencyKey: att.idempotencyKey,
		TotalPoints:    cart.total,
		BalanceAfter:   account.BalancePoints - cart.total,
		OrderCount:     len(groups),
		Status:         models.CheckoutStatusCompleted,
	}
	if err := tx.Checkouts().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record checkout: %w", err)
	}
	orders, err := materializeOrders(ctx, tx.Orders(), record, groups, req)
	if err != nil {
		return nil, err
	}

	att.transition(StateClearingCart)
	clearCart(ctx, tx, att, items)

	return &models.CheckoutResult{
		CheckoutID:    checkoutID,
		Orders:        orders,
		TotalPoints:   cart.total,
		BalancePoints: record.BalanceAfter,
		Redirect:      "/orders",
	}, nil
}

// finishFailed drives the attempt to Failed, running the rollback handler if
// anything past validation happened, and returns the error to report.
func (s *checkoutService) finishFailed(ctx context.Context, att *checkoutAttempt, err error) *CheckoutError {
	cerr := asCheckoutError(err)
	s.abort(ctx, att)

	if cerr.Kind == KindInternal {
		att.logger.Error("checkout failed", zap.Error(err))
	} else {
		att.logger.Info("checkout rejected", zap.String("kind", string(cerr.Kind)), zap.String("reason", cerr.Message))
	}
	s.record(ctx, aws_pkg.MetricCheckoutsFailed, 1)
	return cerr
}

// abort moves the attempt to Failed, compensating whatever the aborted
// transaction could not undo by itself.
func (s *checkoutService) abort(ctx context.Context, att *checkoutAttempt) {
	att.fail()
	if att.state != StateRollingBack {
		return
	}
	report := s.rollback.run(ctx, att)
	att.transition(StateFailed)
	att.logger.Info("checkout rolled back",
		zap.Int("reverted", report.Reverted),
		zap.Int("released", report.Released),
		zap.Int("release_failures", report.Failed),
	)
}

// afterCommit runs the side effects that must not affect the outcome.
func (s *checkoutService) afterCommit(ctx context.Context, buyerEmail, key string, result *models.CheckoutResult, took time.Duration) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if s.opts.Notifier != nil {
		s.opts.Notifier.NotifyOrdersPlaced(bg, buyerEmail, result.Orders)
	}
	if s.opts.Events != nil {
		s.opts.Events.PublishCheckout(bg, buyerEmail, result)
	}
	if s.opts.Guard != nil {
		if body, err := json.Marshal(result); err == nil {
			if err := s.opts.Guard.StoreResult(bg, buyerEmail, key, body, s.opts.ResultTTL); err != nil {
				s.logger.Warn("failed to cache checkout result", zap.Error(err))
			}
		}
	}

	if s.opts.Metrics != nil && s.opts.Metrics.IsEnabled() {
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dims := map[string]string{"Service": serviceName}
			_ = s.opts.Metrics.RecordCount(mctx, aws_pkg.MetricCheckoutsSucceeded, dims)
			_ = s.opts.Metrics.RecordLatency(mctx, aws_pkg.MetricCheckoutLatency, took, dims)
			_ = s.opts.Metrics.RecordValue(mctx, aws_pkg.MetricCheckoutPoints, float64(result.TotalPoints), dims)
			_ = s.opts.Metrics.RecordValue(mctx, aws_pkg.MetricOrdersCreated, float64(len(result.Orders)), dims)
		}()
	}
}

func (s *checkoutService) cachedResult(ctx context.Context, buyerEmail, key string) *models.CheckoutResult {
	if s.opts.Guard == nil {
		return nil
	}
	body, ok, err := s.opts.Guard.CachedResult(ctx, buyerEmail, key)
	if err != nil {
		s.logger.Warn("checkout result cache unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var res models.CheckoutResult
	if err := json.Unmarshal(body, &res); err != nil {
		s.logger.Warn("discarding unreadable cached checkout result", zap.Error(err))
		return nil
	}
	res.Replayed = true
	return &res
}

func (s *checkoutService) record(ctx context.Context, metric string, value float64) {
	if s.opts.Metrics == nil || !s.opts.Metrics.IsEnabled() {
		return
	}
	_ = s.opts.Metrics.RecordValue(ctx, metric, value, map[string]string{"Service": serviceName})
}

func resultFromCheckout(c *models.Checkout) *models.CheckoutResult {
	return &models.CheckoutResult{
		CheckoutID:    c.ID,
		Orders:        c.Orders,
		TotalPoints:   c.TotalPoints,
		BalancePoints: c.BalanceAfter,
		Redirect:      "/orders",
		Replayed:      true,
	}
}
