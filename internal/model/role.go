package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a named bundle of permissions. System roles are seeded and cannot be
// renamed or deleted.
type Role struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	IsSystemRole bool      `gorm:"not null;default:false" json:"is_system_role"`
	Version      int       `gorm:"not null;default:1" json:"version"` // bumped on every grant change
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

// Permission is a resource:action:scope triple.
type Permission struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"name"`
	Resource    string    `gorm:"type:varchar(50);not null;index" json:"resource"`
	Action      string    `gorm:"type:varchar(50);not null" json:"action"`
	Scope       string    `gorm:"type:varchar(20);not null" json:"scope"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RolePermission grants one permission to one role.
type RolePermission struct {
	RoleID       uuid.UUID  `gorm:"type:char(36);primaryKey" json:"role_id"`
	PermissionID uuid.UUID  `gorm:"type:char(36);primaryKey;index" json:"permission_id"`
	GrantedAt    time.Time  `gorm:"not null" json:"granted_at"`
	Permission   Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"-"`
	Role         Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
}

// RoleWithCount is a Role plus its grant count, as returned by listings.
type RoleWithCount struct {
	Role
	PermissionCount int64 `gorm:"column:permission_count"`
	HasWildcard     bool  `gorm:"column:has_wildcard"`
}
