package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
)

// --- In-memory Store ---
//
// memStore mimics the transactional behaviour of the gorm store: WithinTx
// serializes transactions and restores a snapshot when fn fails, Nested does
// the same for a savepoint.

type memState struct {
	accounts      map[string]models.Account
	products      map[uuid.UUID]models.Product
	cart          []models.CartItem
	orders        []models.Order
	checkouts     []models.Checkout
	notifications []models.Notification
}

func (s *memState) clone() *memState {
	cp := &memState{
		accounts: make(map[string]models.Account, len(s.accounts)),
		products: make(map[uuid.UUID]models.Product, len(s.products)),
	}
	for k, v := range s.accounts {
		cp.accounts[k] = v
	}
	for k, v := range s.products {
		if v.InventoryCount != nil {
			n := *v.InventoryCount
			v.InventoryCount = &n
		}
		cp.products[k] = v
	}
	cp.cart = append([]models.CartItem(nil), s.cart...)
	for _, o := range s.orders {
		o.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
		cp.orders = append(cp.orders, o)
	}
	cp.checkouts = append([]models.Checkout(nil), s.checkouts...)
	cp.notifications = append([]models.Notification(nil), s.notifications...)
	return cp
}

type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *memState

	// failure injection
	failOrderCreateOn int // 1-based CreateWithItems call that fails; 0 = never
	orderCreateCalls  int
	failCheckoutWith  error
	failCartDelete    error
	afterRollback     func(st *memState)

	txCount int
}

func newMemStore() *memStore {
	return &memStore{st: &memState{
		accounts: map[string]models.Account{},
		products: map[uuid.UUID]models.Product{},
	}}
}

func (s *memStore) Accounts() repository.AccountRepository           { return memAccounts{s} }
func (s *memStore) Products() repository.ProductRepository           { return memProducts{s} }
func (s *memStore) Carts() repository.CartRepository                 { return memCarts{s} }
func (s *memStore) Orders() repository.OrderRepository               { return memOrders{s} }
func (s *memStore) Checkouts() repository.CheckoutRepository         { return memCheckouts{s} }
func (s *memStore) Notifications() repository.NotificationRepository { return memNotifications{s} }

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.txCount++
	return s.guarded(fn, true)
}

func (s *memStore) Nested(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.guarded(fn, false)
}

func (s *memStore) guarded(fn func(tx repository.Store) error, outer bool) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	err := fn(s)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	*s.st = *snapshot
	if outer && s.afterRollback != nil {
		s.afterRollback(s.st)
		s.afterRollback = nil
	}
	s.mu.Unlock()
	return err
}

// --- seeding and inspection helpers ---

func (s *memStore) addAccount(email string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accounts[email] = models.Account{ID: uuid.New(), Email: email, BalancePoints: balance}
}

func (s *memStore) addProduct(seller, name string, price int64, stock *int) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Product{
		ID:             uuid.New(),
		SellerEmail:    seller,
		Name:           name,
		PricePoints:    price,
		InventoryCount: stock,
		Status:         models.ProductStatusActive,
	}
	s.st.products[p.ID] = p
	return p
}

func (s *memStore) setStatus(id uuid.UUID, status models.ProductStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[id]
	p.Status = status
	s.st.products[id] = p
}

func (s *memStore) addToCart(email string, productID uuid.UUID, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cart = append(s.st.cart, models.CartItem{ID: uuid.New(), UserEmail: email, ProductID: productID, Quantity: qty})
}

func (s *memStore) balance(email string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.accounts[email].BalancePoints
}

func (s *memStore) stock(id uuid.UUID) *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id].InventoryCount
}

func (s *memStore) sales(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id].SalesCount
}

func (s *memStore) cartSize(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.st.cart {
		if it.UserEmail == email {
			n++
		}
	}
	return n
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *memStore) checkoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.checkouts)
}

func intp(n int) *int { return &n }

// --- accounts ---

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.accounts[a.Email]; ok {
		return repository.ErrDuplicate
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.st.accounts[a.Email] = *a
	return nil
}

func (r memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.st.accounts[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r memAccounts) LockByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.FindByEmail(ctx, email)
}

func (r memAccounts) Debit(_ context.Context, email string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.st.accounts[email]
	if !ok || a.BalancePoints < amount {
		return repository.ErrInsufficientBalance
	}
	a.BalancePoints -= amount
	r.s.st.accounts[email] = a
	return nil
}

func (r memAccounts) Credit(_ context.Context, email string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.st.accounts[email]
	if !ok {
		return repository.ErrNotFound
	}
	a.BalancePoints += amount
	r.s.st.accounts[email] = a
	return nil
}

// --- products ---

type memProducts struct{ s *memStore }

func (r memProducts) Create(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.st.products[p.ID] = *p
	return nil
}

func (r memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.InventoryCount != nil {
		p.InventoryCount = intp(*p.InventoryCount)
	}
	return &p, nil
}

func (r memProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range repository.SortedIDs(ids) {
		if p, err := r.FindByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memProducts) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.FindByIDs(ctx, ids)
}

func (r memProducts) DecrementInventory(_ context.Context, id uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok || p.InventoryCount == nil || *p.InventoryCount < quantity {
		return &repository.StockShortageError{ProductID: id, Available: -1}
	}
	left := *p.InventoryCount - quantity
	if left < 0 {
		left = 0
	}
	p.InventoryCount = &left
	p.SalesCount += quantity
	r.s.st.products[id] = p
	return nil
}

func (r memProducts) IncrementSales(_ context.Context, id uuid.UUID, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.SalesCount += quantity
	r.s.st.products[id] = p
	return nil
}

func (r memProducts) RecordExternalSale(_ context.Context, id uuid.UUID, quantity, remaining int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.InventoryCount = &remaining
	p.SalesCount += quantity
	r.s.st.products[id] = p
	return nil
}

func (r memProducts) ListTracked(_ context.Context, afterID uuid.UUID, limit int) ([]models.Product, error) {
	return nil, nil
}

// --- cart ---

type memCarts struct{ s *memStore }

func (r memCarts) ListByUser(_ context.Context, email string) ([]models.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CartItem
	for _, it := range r.s.st.cart {
		if it.UserEmail == email {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r memCarts) ListWithProducts(ctx context.Context, email string) ([]models.CartItem, error) {
	items, _ := r.ListByUser(ctx, email)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range items {
		if p, ok := r.s.st.products[items[i].ProductID]; ok {
			items[i].Product = &p
		}
	}
	return items, nil
}

func (r memCarts) AddItem(_ context.Context, item *models.CartItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, it := range r.s.st.cart {
		if it.UserEmail == item.UserEmail && it.ProductID == item.ProductID {
			r.s.st.cart[i].Quantity += item.Quantity
			*item = r.s.st.cart[i]
			return nil
		}
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.s.st.cart = append(r.s.st.cart, *item)
	return nil
}

func (r memCarts) RemoveItem(_ context.Context, email string, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, it := range r.s.st.cart {
		if it.ID == id && it.UserEmail == email {
			r.s.st.cart = append(r.s.st.cart[:i], r.s.st.cart[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memCarts) DeleteItems(_ context.Context, email string, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.s.st.cart[:0]
	for _, it := range r.s.st.cart {
		if !(it.UserEmail == email && drop[it.ID]) {
			kept = append(kept, it)
		}
	}
	r.s.st.cart = kept
	return r.s.failCartDelete
}

// --- orders ---

type memOrders struct{ s *memStore }

func (r memOrders) CreateWithItems(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orderCreateCalls++
	if r.s.failOrderCreateOn > 0 && r.s.orderCreateCalls == r.s.failOrderCreateOn {
		return errOrderInsert
	}
	o.CreatedAt = time.Now()
	cp := *o
	cp.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
	r.s.st.orders = append(r.s.st.orders, cp)
	return nil
}

func (r memOrders) FindByBuyer(_ context.Context, email string, page, limit int) ([]models.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Order
	for _, o := range r.s.st.orders {
		if o.BuyerEmail == email {
			all = append(all, o)
		}
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r memOrders) FindByIDAndBuyer(_ context.Context, id uuid.UUID, email string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.st.orders {
		if o.ID == id && o.BuyerEmail == email {
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memOrders) FindByCheckoutID(_ context.Context, checkoutID uuid.UUID) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.ordersOfLocked(checkoutID), nil
}

func (s *memStore) ordersOfLocked(checkoutID uuid.UUID) []models.Order {
	var out []models.Order
	for _, o := range s.st.orders {
		if o.CheckoutID == checkoutID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// --- checkouts ---

type memCheckouts struct{ s *memStore }

func (r memCheckouts) Create(_ context.Context, c *models.Checkout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCheckoutWith != nil {
		return r.s.failCheckoutWith
	}
	for _, existing := range r.s.st.checkouts {
		if existing.BuyerEmail == c.BuyerEmail && existing.IdempotencyKey == c.IdempotencyKey {
			return repository.ErrDuplicate
		}
	}
	cp := *c
	cp.Orders = nil
	r.s.st.checkouts = append(r.s.st.checkouts, cp)
	return nil
}

func (r memCheckouts) FindByKey(_ context.Context, email, key string) (*models.Checkout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.st.checkouts {
		if c.BuyerEmail == email && c.IdempotencyKey == key {
			c.Orders = r.s.ordersOfLocked(c.ID)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- notifications ---

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.s.st.notifications = append(r.s.st.notifications, *n)
	return nil
}

func (r memNotifications) FindByUser(_ context.Context, email string, page, pageSize int) ([]models.Notification, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Notification
	for _, n := range r.s.st.notifications {
		if n.UserEmail == email {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}
