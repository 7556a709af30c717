package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Events broadcast to admin dashboards.
const (
	EventRoleCreated        = "role.created"
	EventRoleUpdated        = "role.updated"
	EventRoleDeleted        = "role.deleted"
	EventRoleReset          = "role.permissions_reset"
	EventPermissionGranted  = "role.permission_granted"
	EventPermissionRevoked  = "role.permission_revoked"
	EventUserRoleUpdated    = "user.role_updated"
	EventUserStatusUpdated  = "user.status_updated"
	EventSplitConfigUpdated = "split.config_updated"
	EventEarningRecorded    = "earning.recorded"
)

// EventPublisher fans admin events out to live listeners.
type EventPublisher interface {
	Publish(event string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// Actor is the authenticated caller of a mutating operation. The zero value
// is the system itself.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func (a Actor) auditUserID() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) logAttrs() slog.Attr {
	return slog.Group("actor", "id", a.UserID.String(), "role", a.Role)
}

// writeAudit appends an audit row using ctx's transaction when present.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor Actor, action, entityID, entityName string, details any) error {
	var raw datatypes.JSON
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		raw = datatypes.JSON(b)
	}
	return repo.Log(ctx, &model.AuditLog{
		UserID:     actor.auditUserID(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    raw,
		CreatedAt:  time.Now(),
	})
}

const timeLayout = time.RFC3339
