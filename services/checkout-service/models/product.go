package models

import (
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerEmail string    `gorm:"not null;index" json:"seller_email"`
	Name        string    `gorm:"not null" json:"name"`
	PricePoints int64     `gorm:"not null;check:price_points >= 0" json:"price_points"`
	// InventoryCount is nil when stock is not tracked.
	InventoryCount *int          `gorm:"check:inventory_count >= 0" json:"inventory_count"`
	SalesCount     int           `gorm:"not null;default:0" json:"sales_count"`
	Status         ProductStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) Tracked() bool {
	return p.InventoryCount != nil
}

func (p *Product) Purchasable() bool {
	return p.Status == ProductStatusActive
}
