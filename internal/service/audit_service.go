package service

import (
	"context"
	"log/slog"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	UserEmail  string `json:"user_email"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter repository.AuditFilter, offset, limit int) ([]AuditLogResponse, int64, error)
	// RecordDenied logs a permission check that failed. It never fails the caller.
	RecordDenied(ctx context.Context, actor Actor, required []string, method, path string)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditFilter, offset, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, err, "failed to retrieve audit logs")
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		email := "System"
		userID := ""
		if l.User != nil {
			email = l.User.Email
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			UserEmail:  email,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    string(l.Details),
			CreatedAt:  l.CreatedAt.Format(timeLayout),
		})
	}
	return res, total, nil
}

func (s *auditService) RecordDenied(ctx context.Context, actor Actor, required []string, method, path string) {
	slog.WarnContext(ctx, "permission denied", "required", required, "method", method, "path", path, actor.logAttrs())
	entity := path
	if len(entity) > 64 {
		entity = entity[:64]
	}
	err := writeAudit(ctx, s.repo, actor, model.ActionPermissionDenied, entity, actor.Role,
		map[string]any{"required": required, "method": method})
	if err != nil {
		slog.ErrorContext(ctx, "failed to audit permission denial", "error", err)
	}
}
