package models

import "time"

const EventOrderCreated = "order.created"

// OrderCreatedEvent is published once per order after the checkout commits.
type OrderCreatedEvent struct {
	EventType   string           `json:"event_type"`
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	CheckoutID  string           `json:"checkout_id"`
	BuyerEmail  string           `json:"buyer_email"`
	SellerEmail string           `json:"seller_email"`
	TotalPoints int64            `json:"total_points"`
	Items       []OrderEventItem `json:"items"`
	Timestamp   time.Time        `json:"timestamp"`
}

type OrderEventItem struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	PricePoints int64  `json:"price_points"`
}

// CheckoutRequestedMessage is the body of an asynchronous checkout request
// on the checkout queue.
type CheckoutRequestedMessage struct {
	BuyerEmail      string `json:"buyer_email"`
	IdempotencyKey  string `json:"idempotency_key"`
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}

// Receipt is the archived summary of a committed checkout.
type Receipt struct {
	CheckoutID   string    `json:"checkout_id"`
	BuyerEmail   string    `json:"buyer_email"`
	TotalPoints  int64     `json:"total_points"`
	BalanceAfter int64     `json:"balance_after"`
	Orders       []Order   `json:"orders"`
	CreatedAt    time.Time `json:"created_at"`
}
