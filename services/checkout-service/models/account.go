package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the buyer/seller profile. Email is the user identity throughout.
type Account struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName   string    `json:"display_name"`
	BalancePoints int64     `gorm:"not null;default:0;check:balance_points >= 0" json:"balance_points"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
