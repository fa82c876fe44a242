package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/beacon-market/services/checkout-service/controllers"
	"github.com/yashrajoria/beacon-market/services/checkout-service/middleware"
	"github.com/yashrajoria/beacon-market/services/checkout-service/models"
	"github.com/yashrajoria/beacon-market/services/checkout-service/routes"
	"github.com/yashrajoria/beacon-market/services/checkout-service/services"
	"github.com/yashrajoria/beacon-market/services/common/auth"
)

// ---- mocks ----

type mockCheckoutSvc struct {
	result  *models.CheckoutResult
	err     *services.CheckoutError
	gotKey  string
	gotUser string
	gotReq  *models.CheckoutRequest
	calls   int
}

func (m *mockCheckoutSvc) Checkout(ctx context.Context, email, key string, req *models.CheckoutRequest) (*models.CheckoutResult, *services.CheckoutError) {
	m.calls++
	m.gotUser, m.gotKey, m.gotReq = email, key, req
	return m.result, m.err
}

type mockCartSvc struct {
	cart      *models.CartView
	err       *services.ServiceError
	removedID uuid.UUID
	added     *models.AddCartItemRequest
}

func (m *mockCartSvc) GetCart(ctx context.Context, email string) (*models.CartView, *services.ServiceError) {
	return m.cart, m.err
}

func (m *mockCartSvc) AddItem(ctx context.Context, email string, req *models.AddCartItemRequest) (*models.CartView, *services.ServiceError) {
	m.added = req
	return m.cart, m.err
}

func (m *mockCartSvc) RemoveItem(ctx context.Context, email string, id uuid.UUID) *services.ServiceError {
	m.removedID = id
	return m.err
}

type mockOrderSvc struct {
	list     *models.OrderListResponse
	order    *models.Order
	err      *services.ServiceError
	gotPage  int
	gotLimit int
	gotBuyer string
	gotOrder uuid.UUID
}

func (m *mockOrderSvc) GetBuyerOrders(ctx context.Context, email string, page, limit int) (*models.OrderListResponse, *services.ServiceError) {
	m.gotBuyer, m.gotPage, m.gotLimit = email, page, limit
	return m.list, m.err
}

func (m *mockOrderSvc) GetOrderByID(ctx context.Context, email string, id uuid.UUID) (*models.Order, *services.ServiceError) {
	m.gotBuyer, m.gotOrder = email, id
	return m.order, m.err
}

type mockAccountSvc struct {
	account *models.Account
	err     *services.ServiceError
}

func (m *mockAccountSvc) Me(ctx context.Context, email string) (*models.Account, *services.ServiceError) {
	return m.account, m.err
}

type mockNotificationSvc struct {
	items []models.Notification
	total int64
	err   *services.ServiceError
}

func (m *mockNotificationSvc) NotifyOrdersPlaced(ctx context.Context, email string, orders []models.Order) {
}

func (m *mockNotificationSvc) List(ctx context.Context, email string, page, pageSize int) ([]models.Notification, int64, *services.ServiceError) {
	return m.items, m.total, m.err
}

// ---- helpers ----

type mocks struct {
	checkout      *mockCheckoutSvc
	cart          *mockCartSvc
	orders        *mockOrderSvc
	accounts      *mockAccountSvc
	notifications *mockNotificationSvc
}

func setupRouter(m *mocks) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.RegisterRoutes(r, middleware.AuthMiddleware(auth.NewTokenVerifier(""), true), routes.Controllers{
		Checkout:      controllers.NewCheckoutController(m.checkout),
		Cart:          controllers.NewCartController(m.cart),
		Orders:        controllers.NewOrderController(m.orders),
		Accounts:      controllers.NewAccountController(m.accounts),
		Notifications: controllers.NewNotificationController(m.notifications),
	}, 5*time.Second)
	return r
}

func newMocks() *mocks {
	return &mocks{
		checkout:      &mockCheckoutSvc{},
		cart:          &mockCartSvc{},
		orders:        &mockOrderSvc{},
		accounts:      &mockAccountSvc{},
		notifications: &mockNotificationSvc{},
	}
}

func do(r *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Email", "Ana@Example.com")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// ---- checkout ----

func TestCheckout_Created(t *testing.T) {
	m := newMocks()
	m.checkout.result = &models.CheckoutResult{CheckoutID: uuid.New(), TotalPoints: 150, BalancePoints: 350, Redirect: "/orders"}
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/checkout", []byte(`{"shipping_address":"Main St 1"}`), map[string]string{
		controllers.IdempotencyKeyHeader: "  key-1 ",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@example.com", m.checkout.gotUser)
	assert.Equal(t, "key-1", m.checkout.gotKey)
	assert.Equal(t, "Main St 1", m.checkout.gotReq.ShippingAddress)

	resp := decode(t, w)
	assert.Equal(t, float64(150), resp["total_points"])
	assert.Equal(t, "/orders", resp["redirect"])
}

func TestCheckout_EmptyBodyAllowed(t *testing.T) {
	m := newMocks()
	m.checkout.result = &models.CheckoutResult{}
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/checkout", nil, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, m.checkout.calls)
	assert.Empty(t, m.checkout.gotKey)
}

func TestCheckout_ReplayReturnsOK(t *testing.T) {
	m := newMocks()
	m.checkout.result = &models.CheckoutResult{Replayed: true}
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/checkout", nil, map[string]string{controllers.IdempotencyKeyHeader: "key-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    *services.CheckoutError
		status int
		code   string
		msg    string
	}{
		{"balance", &services.CheckoutError{Kind: services.KindInsufficientBalance, Message: "Insufficient balance"}, http.StatusPaymentRequired, "insufficient_balance", "Insufficient balance"},
		{"stock", &services.CheckoutError{Kind: services.KindInsufficientInventory, Message: "Only 1 left of Table"}, http.StatusConflict, "insufficient_inventory", "Only 1 left of Table"},
		{"empty", &services.CheckoutError{Kind: services.KindEmptyCart, Message: "Cart is empty"}, http.StatusBadRequest, "empty_cart", "Cart is empty"},
		{"in progress", &services.CheckoutError{Kind: services.KindInProgress, Message: "Checkout already in progress"}, http.StatusConflict, "checkout_in_progress", "Checkout already in progress"},
		{"internal", &services.CheckoutError{Kind: services.KindInternal, Message: "Checkout failed"}, http.StatusInternalServerError, "checkout_failed", "Checkout failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.checkout.err = tt.err
			r := setupRouter(m)

			w := do(r, http.MethodPost, "/checkout", nil, nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.code, resp["code"])
			assert.Equal(t, tt.msg, resp["error"])
		})
	}
}

func TestCheckout_InvalidBody(t *testing.T) {
	m := newMocks()
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/checkout", []byte(`{"shipping_address":`), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, m.checkout.calls)
}

func TestCheckout_KeyTooLong(t *testing.T) {
	m := newMocks()
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/checkout", nil, map[string]string{
		controllers.IdempotencyKeyHeader: string(bytes.Repeat([]byte("k"), 256)),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, m.checkout.calls)
}

func TestCheckout_Unauthenticated(t *testing.T) {
	m := newMocks()
	r := setupRouter(m)

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, m.checkout.calls)
}

// ---- cart ----

func TestGetCart_Success(t *testing.T) {
	m := newMocks()
	m.cart.cart = &models.CartView{Items: []models.CartItem{}, TotalPoints: 0}
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "items")
}

func TestAddItem_Created(t *testing.T) {
	m := newMocks()
	m.cart.cart = &models.CartView{Items: []models.CartItem{}, ItemCount: 2}
	r := setupRouter(m)
	productID := uuid.New()

	body, _ := json.Marshal(models.AddCartItemRequest{ProductID: productID, Quantity: 2})
	w := do(r, http.MethodPost, "/cart/items", body, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, m.cart.added)
	assert.Equal(t, productID, m.cart.added.ProductID)
}

func TestAddItem_ValidationFails(t *testing.T) {
	m := newMocks()
	r := setupRouter(m)

	w := do(r, http.MethodPost, "/cart/items", []byte(`{"product_id":"`+uuid.NewString()+`","quantity":0}`), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, m.cart.added)
}

func TestAddItem_ServiceError(t *testing.T) {
	m := newMocks()
	m.cart.err = &services.ServiceError{StatusCode: http.StatusConflict, Message: "Table is not available"}
	r := setupRouter(m)

	body, _ := json.Marshal(models.AddCartItemRequest{ProductID: uuid.New(), Quantity: 1})
	w := do(r, http.MethodPost, "/cart/items", body, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Table is not available", decode(t, w)["error"])
}

func TestRemoveItem(t *testing.T) {
	m := newMocks()
	r := setupRouter(m)
	id := uuid.New()

	w := do(r, http.MethodDelete, "/cart/items/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, m.cart.removedID)

	w = do(r, http.MethodDelete, "/cart/items/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- orders ----

func TestGetOrders_Pagination(t *testing.T) {
	m := newMocks()
	m.orders.list = &models.OrderListResponse{Orders: []models.Order{}, Meta: models.MetaData{Page: 2, Limit: 100}}
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/orders?page=2&limit=500", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, m.orders.gotPage)
	assert.Equal(t, 100, m.orders.gotLimit)
	assert.Equal(t, "ana@example.com", m.orders.gotBuyer)
}

func TestGetOrders_DefaultsOnGarbage(t *testing.T) {
	m := newMocks()
	m.orders.list = &models.OrderListResponse{Orders: []models.Order{}}
	r := setupRouter(m)

	do(r, http.MethodGet, "/orders?page=-3&limit=abc", nil, nil)

	assert.Equal(t, 1, m.orders.gotPage)
	assert.Equal(t, 10, m.orders.gotLimit)
}

func TestGetOrderByID(t *testing.T) {
	m := newMocks()
	id := uuid.New()
	m.orders.order = &models.Order{ID: id, OrderNumber: "ORD-1"}
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/orders/"+id.String(), nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, m.orders.gotOrder)
	order := decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, "ORD-1", order["order_number"])
}

func TestGetOrderByID_NotFound(t *testing.T) {
	m := newMocks()
	m.orders.err = &services.ServiceError{StatusCode: http.StatusNotFound, Message: "Order not found"}
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/orders/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", decode(t, w)["error"])
}

// ---- account & notifications ----

func TestAccountMe(t *testing.T) {
	m := newMocks()
	m.accounts.account = &models.Account{Email: "ana@example.com", BalancePoints: 500}
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/account/me", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	account := decode(t, w)["account"].(map[string]interface{})
	assert.Equal(t, float64(500), account["balance_points"])
}

func TestNotificationsList_Meta(t *testing.T) {
	m := newMocks()
	m.notifications.items = []models.Notification{{Type: models.NotificationTypeOrderPlaced, Title: "Order placed"}}
	m.notifications.total = 11
	r := setupRouter(m)

	w := do(r, http.MethodGet, "/notifications?page=1&limit=10", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Len(t, resp["notifications"], 1)
	meta := resp["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total_pages"])
	assert.Equal(t, true, meta["has_more"])
}
