package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateRole        = "CREATE_ROLE"
	ActionUpdateRole        = "UPDATE_ROLE"
	ActionDeleteRole        = "DELETE_ROLE"
	ActionResetRole         = "RESET_ROLE_DEFAULTS"
	ActionGrantPermission   = "GRANT_PERMISSION"
	ActionRevokePermission  = "REVOKE_PERMISSION"
	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUserRole    = "UPDATE_USER_ROLE"
	ActionUpdateUserStatus  = "UPDATE_USER_STATUS"
	ActionUpdateSplitConfig = "UPDATE_SPLIT_CONFIG"
	ActionRecordEarning     = "RECORD_EARNING"
	ActionPermissionDenied  = "PERMISSION_DENIED"
)

// AuditLog tracks who changed what and when.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:char(36);index" json:"user_id"` // nil for system actions
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(64);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
