package service_test

import (
	"context"
	"testing"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	a, _, admin := setup(t)

	created, err := a.Users.CreateUser(ctx, admin, service.CreateUserRequest{
		Email:       "  Singer@Example.com ",
		Password:    "password123",
		DisplayName: "Singer",
		Role:        permission.RoleArtist,
	})
	require.NoError(t, err)
	assert.Equal(t, "singer@example.com", created.Email)
	assert.Equal(t, model.UserStatusActive, created.Status)

	_, err = a.Users.CreateUser(ctx, admin, service.CreateUserRequest{
		Email: "singer@example.com", Password: "password123", Role: permission.RoleArtist,
	})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = a.Users.CreateUser(ctx, admin, service.CreateUserRequest{
		Email: "other@example.com", Password: "password123", Role: "ghost",
	})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	moved, err := a.Users.UpdateRole(ctx, admin, created.ID, service.UpdateUserRoleRequest{Role: permission.RoleLabelAdmin})
	require.NoError(t, err)
	assert.Equal(t, permission.RoleLabelAdmin, moved.Role)

	_, err = a.Users.UpdateRole(ctx, admin, created.ID, service.UpdateUserRoleRequest{Role: "ghost"})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	suspended, err := a.Users.UpdateStatus(ctx, admin, created.ID, service.UpdateUserStatusRequest{Status: model.UserStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusSuspended, suspended.Status)

	_, err = a.Users.UpdateStatus(ctx, admin, uuid.NewString(), service.UpdateUserStatusRequest{Status: model.UserStatusActive})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	t.Run("list filters", func(t *testing.T) {
		users, total, err := a.Users.ListUsers(ctx, repository.UserFilter{Status: model.UserStatusSuspended}, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, users, 1)
		assert.Equal(t, created.ID, users[0].ID)

		_, total, err = a.Users.ListUsers(ctx, repository.UserFilter{Role: permission.RoleSuperAdmin}, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)

		_, _, err = a.Users.ListUsers(ctx, repository.UserFilter{Status: "banned"}, 0, 10)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	})

	t.Run("changes are audited", func(t *testing.T) {
		logs, total, err := a.Audit.GetAuditLogs(ctx, repository.AuditFilter{EntityID: created.ID}, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		for _, l := range logs {
			assert.Equal(t, admin.Email, l.UserEmail)
		}
	})
}

func TestAuth(t *testing.T) {
	ctx := context.Background()
	a, db, admin := setup(t)
	auth := service.NewAuthService(repository.NewUserRepository(db), a.Roles, a.Tokens)

	res, err := auth.Login(ctx, service.LoginRequest{Email: "ADMIN@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, admin.UserID.String(), res.User.ID)

	claims, err := a.Tokens.Parse(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleSuperAdmin, claims.Role)

	_, err = auth.Login(ctx, service.LoginRequest{Email: "admin@example.com", Password: "wrong-password"})
	assert.Equal(t, apperr.Authentication, apperr.KindOf(err))
	_, err = auth.Login(ctx, service.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, apperr.Authentication, apperr.KindOf(err))

	me, err := auth.Me(ctx, admin.UserID.String())
	require.NoError(t, err)
	assert.True(t, me.HasWildcard)
	assert.Equal(t, []string{permission.All}, me.Permissions)

	t.Run("suspended accounts cannot log in", func(t *testing.T) {
		_, err := a.Users.UpdateStatus(ctx, admin, admin.UserID.String(), service.UpdateUserStatusRequest{Status: model.UserStatusSuspended})
		require.NoError(t, err)
		_, err = auth.Login(ctx, service.LoginRequest{Email: "admin@example.com", Password: "password123"})
		assert.Equal(t, apperr.Authorization, apperr.KindOf(err))
	})
}

func TestRecordDenied(t *testing.T) {
	ctx := context.Background()
	a, _, admin := setup(t)

	a.Audit.RecordDenied(ctx, admin, []string{permission.RoleManage}, "POST", "/api/admin/roles/create")

	logs, total, err := a.Audit.GetAuditLogs(ctx, repository.AuditFilter{Action: model.ActionPermissionDenied}, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "/api/admin/roles/create", logs[0].EntityID)
	assert.Contains(t, logs[0].Details, permission.RoleManage)
}
