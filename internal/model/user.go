package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UserStatusActive    = "active"
	UserStatusPending   = "pending"
	UserStatusSuspended = "suspended"
	UserStatusInactive  = "inactive"
)

func ValidUserStatus(s string) bool {
	switch s {
	case UserStatusActive, UserStatusPending, UserStatusSuspended, UserStatusInactive:
		return true
	}
	return false
}

// User is a platform account. Role holds the role name, not its id.
type User struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"type:varchar(255)" json:"display_name"`
	Role         string    `gorm:"type:varchar(100);not null;index" json:"role"`
	Status       string    `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
