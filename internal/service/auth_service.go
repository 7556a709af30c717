package service

import (
	"context"
	"strings"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/token"

	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   string       `json:"expires_at"`
	User        UserResponse `json:"user"`
}

type MeResponse struct {
	User        UserResponse `json:"user"`
	Permissions []string     `json:"permissions"`
	HasWildcard bool         `json:"has_wildcard"`
}

// PermissionResolver returns a role's effective permissions.
type PermissionResolver interface {
	PermissionsForRole(ctx context.Context, roleName string) (permission.Set, error)
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID string) (*MeResponse, error)
}

type authService struct {
	users  repository.UserRepository
	perms  PermissionResolver
	tokens *token.Manager
}

func NewAuthService(users repository.UserRepository, perms PermissionResolver, tokens *token.Manager) AuthService {
	return &authService{users: users, perms: perms, tokens: tokens}
}

const invalidCredentials = "invalid email or password"

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.New(apperr.Authentication, invalidCredentials)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to look up user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.New(apperr.Authentication, invalidCredentials)
	}
	if user.Status != model.UserStatusActive {
		return nil, apperr.New(apperr.Authorization, "account is %s", user.Status)
	}

	signed, exp, err := s.tokens.Issue(user.ID.String(), user.Role, user.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to issue token")
	}
	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   exp.Format(timeLayout),
		User:        *mapToResponse(user),
	}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*MeResponse, error) {
	id, err := parseID(userID, "user id")
	if err != nil {
		return nil, apperr.Wrap(apperr.Authentication, err, "invalid token subject")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromDB(err, "user not found")
	}
	set, err := s.perms.PermissionsForRole(ctx, user.Role)
	if err != nil {
		return nil, err
	}
	return &MeResponse{
		User:        *mapToResponse(user),
		Permissions: set.Names(),
		HasWildcard: set.HasWildcard(),
	}, nil
}
