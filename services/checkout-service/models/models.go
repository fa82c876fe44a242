package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCancelled = "cancelled"
)

// Order is one seller's share of a checkout.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber string    `gorm:"uniqueIndex;not null" json:"order_number"`
	CheckoutID  uuid.UUID `gorm:"type:uuid;not null;index" json:"checkout_id"`
	// Position is the seller's first-seen index in the checkout's cart.
	Position        int         `gorm:"not null;default:0" json:"-"`
	BuyerEmail      string      `gorm:"not null;index" json:"buyer_email"`
	SellerEmail     string      `gorm:"not null;index" json:"seller_email"`
	TotalPoints     int64       `gorm:"not null" json:"total_points"`
	Status          string      `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	OrderItems      []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem snapshots the product name and unit price at purchase time.
type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string    `gorm:"not null" json:"product_name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	PricePoints int64     `gorm:"not null" json:"price_points"`
}

func (i OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.PricePoints
}

type OrderListResponse struct {
	Orders []Order  `json:"orders"`
	Meta   MetaData `json:"meta"`
}

type MetaData struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}
