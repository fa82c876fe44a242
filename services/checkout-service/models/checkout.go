package models

import (
	"time"

	"github.com/google/uuid"
)

const CheckoutStatusCompleted = "completed"

// Checkout records one committed checkout attempt, keyed per buyer by the
// client's idempotency key.
type Checkout struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BuyerEmail     string    `gorm:"not null;uniqueIndex:idx_checkout_buyer_key" json:"buyer_email"`
	IdempotencyKey string    `gorm:"not null;uniqueIndex:idx_checkout_buyer_key" json:"idempotency_key"`
	TotalPoints    int64     `gorm:"not null" json:"total_points"`
	BalanceAfter   int64     `gorm:"not null" json:"balance_after"`
	OrderCount     int       `gorm:"not null" json:"order_count"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	Orders         []Order   `gorm:"foreignKey:CheckoutID" json:"orders,omitempty"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"max=500"`
	Notes           string `json:"notes" binding:"max=1000"`
}

type CheckoutResult struct {
	CheckoutID    uuid.UUID `json:"checkout_id"`
	Orders        []Order   `json:"orders"`
	TotalPoints   int64     `json:"total_points"`
	BalancePoints int64     `json:"balance_points"`
	Redirect      string    `json:"redirect"`
	// Replayed is set when the result was served from a previous attempt
	// with the same idempotency key.
	Replayed bool `json:"replayed"`
}
