package service

import (
	"context"
	"log/slog"
	"strings"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// DTOs for request validation
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
	Status      string `json:"status"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active pending suspended inactive"`
}

// UserResponse never exposes the password hash.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, filter repository.UserFilter, offset, limit int) ([]UserResponse, int64, error)
	UpdateRole(ctx context.Context, actor Actor, id string, req UpdateUserRoleRequest) (*UserResponse, error)
	UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateUserStatusRequest) (*UserResponse, error)
}

type userService struct {
	tx     repository.TransactionManager
	users  repository.UserRepository
	roles  repository.RoleRepository
	audit    repository.AuditRepository
	events   EventPublisher
	accounts AccountInvalidator
}

func NewUserService(tx repository.TransactionManager, users repository.UserRepository, roles repository.RoleRepository, audit repository.AuditRepository, events EventPublisher, accounts AccountInvalidator) UserService {
	return &userService{tx: tx, users: users, roles: roles, audit: audit, events: publisherOrNoop(events), accounts: invalidatorOrNoop(accounts)}
}

func mapToResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt.Format(timeLayout),
		UpdatedAt:   u.UpdatedAt.Format(timeLayout),
	}
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	status := req.Status
	if status == "" {
		status = model.UserStatusActive
	}
	if !model.ValidUserStatus(status) {
		return nil, apperr.New(apperr.Validation, "invalid status '%s'", status)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to hash password")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         req.Role,
		Status:       status,
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireRole(txCtx, req.Role); err != nil {
			return err
		}
		if _, err := s.users.GetByEmail(txCtx, email); err == nil {
			return apperr.New(apperr.Conflict, "email already exists")
		} else if !repository.IsNotFound(err) {
			return apperr.Wrap(apperr.Internal, err, "failed to check email")
		}
		if err := s.users.Create(txCtx, user); err != nil {
			return apperr.FromDB(err, "user not found")
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateUser, user.ID.String(), user.Email,
			map[string]any{"role": user.Role, "status": user.Status})
	})
	if err != nil {
		return nil, asAppErr(err, "failed to create user")
	}
	return mapToResponse(user), nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID(id, "user id")
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter, offset, limit int) ([]UserResponse, int64, error) {
	if filter.Status != "" && !model.ValidUserStatus(filter.Status) {
		return nil, 0, apperr.New(apperr.Validation, "invalid status filter '%s'", filter.Status)
	}
	users, total, err := s.users.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, err, "failed to list users")
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, *mapToResponse(&users[i]))
	}
	return res, total, nil
}

func (s *userService) UpdateRole(ctx context.Context, actor Actor, id string, req UpdateUserRoleRequest) (*UserResponse, error) {
	role := strings.TrimSpace(req.Role)
	resp, previous, err := s.updateField(ctx, actor, id, "role", role, model.ActionUpdateUserRole, func(txCtx context.Context) error {
		return s.requireRole(txCtx, role)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user role updated", "user", resp.ID, "from", previous, "to", role, actor.logAttrs())
	s.events.Publish(EventUserRoleUpdated, resp)
	return resp, nil
}

func (s *userService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateUserStatusRequest) (*UserResponse, error) {
	if !model.ValidUserStatus(req.Status) {
		return nil, apperr.New(apperr.Validation, "invalid status '%s'", req.Status)
	}
	resp, _, err := s.updateField(ctx, actor, id, "status", req.Status, model.ActionUpdateUserStatus, nil)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventUserStatusUpdated, resp)
	return resp, nil
}

// updateField sets one column on a user, audits it, and returns the fresh row
// plus the previous value.
func (s *userService) updateField(ctx context.Context, actor Actor, id, column, value, action string, check func(context.Context) error) (*UserResponse, string, error) {
	userID, err := parseID(id, "user id")
	if err != nil {
		return nil, "", err
	}

	var user *model.User
	var previous string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		u, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return apperr.FromDB(err, "user not found")
		}
		if column == "role" {
			previous = u.Role
		} else {
			previous = u.Status
		}
		if check != nil {
			if err := check(txCtx); err != nil {
				return err
			}
		}
		if err := s.users.UpdateFields(txCtx, userID, map[string]any{column: value}); err != nil {
			return apperr.FromDB(err, "user not found")
		}
		if err := writeAudit(txCtx, s.audit, actor, action, u.ID.String(), u.Email,
			map[string]any{"field": column, "from": previous, "to": value}); err != nil {
			return err
		}
		user, err = s.users.GetByID(txCtx, userID)
		if err != nil {
			return apperr.FromDB(err, "user not found")
		}
		return nil
	})
	if err != nil {
		return nil, "", asAppErr(err, "failed to update user")
	}
	s.accounts.Forget(userID)
	return mapToResponse(user), previous, nil
}

func (s *userService) requireRole(ctx context.Context, name string) error {
	if name == "" {
		return apperr.New(apperr.Validation, "role is required")
	}
	if _, err := s.roles.FindByName(ctx, name); err != nil {
		if repository.IsNotFound(err) {
			return apperr.New(apperr.Validation, "role '%s' does not exist", name)
		}
		return apperr.Wrap(apperr.Internal, err, "failed to look up role")
	}
	return nil
}
