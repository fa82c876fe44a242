package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeOrderReceived = "order_received"
	NotificationTypeOrderPlaced   = "order_placed"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserEmail string    `gorm:"not null;index" json:"user_email"`
	Type      string    `gorm:"type:varchar(40);not null" json:"type"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
