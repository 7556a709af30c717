package service_test

import (
	"context"
	"sort"
	"testing"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/app"
	"royalty-admin/internal/config"
	"royalty-admin/internal/model"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/service"
	"royalty-admin/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*app.App, *gorm.DB, service.Actor) {
	return setupWith(t, nil)
}

func setupWith(t *testing.T, cfg *config.Config) (*app.App, *gorm.DB, service.Actor) {
	t.Helper()
	a, db := testutil.SetupTestApp(t, cfg)
	admin := testutil.CreateTestUser(t, db, "admin@example.com", "password123", permission.RoleSuperAdmin)
	return a, db, actorOf(admin)
}

func actorOf(u *model.User) service.Actor {
	return service.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func roleByName(t *testing.T, db *gorm.DB, name string) model.Role {
	t.Helper()
	var r model.Role
	require.NoError(t, db.Where("name = ?", name).First(&r).Error)
	return r
}

func permByName(t *testing.T, db *gorm.DB, name string) model.Permission {
	t.Helper()
	var p model.Permission
	require.NoError(t, db.Where("name = ?", name).First(&p).Error)
	return p
}

func grantedNames(t *testing.T, db *gorm.DB, roleID uuid.UUID) []string {
	t.Helper()
	var names []string
	require.NoError(t, db.Table("permissions").
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.name").
		Pluck("permissions.name", &names).Error)
	return names
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestSeedDefaults(t *testing.T) {
	a, db, _ := setup(t)

	artist := roleByName(t, db, permission.RoleArtist)
	assert.True(t, artist.IsSystemRole)
	assert.Len(t, grantedNames(t, db, artist.ID), 13)

	super := roleByName(t, db, permission.RoleSuperAdmin)
	assert.Equal(t, []string{permission.All}, grantedNames(t, db, super.ID))

	t.Run("second seed leaves edited roles alone", func(t *testing.T) {
		require.NoError(t, db.Exec("DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?",
			artist.ID, permByName(t, db, "payout:create:own").ID).Error)

		res, err := a.Roles.SeedDefaults(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.RolesCreated)
		assert.NotContains(t, res.RolesSeeded, permission.RoleArtist)
		assert.Len(t, grantedNames(t, db, artist.ID), 12)
	})
}

func TestResetToDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("artist gets exactly its defaults", func(t *testing.T) {
		a, db, admin := setup(t)
		artist := roleByName(t, db, permission.RoleArtist)

		_, err := a.Roles.RevokePermission(ctx, admin, artist.ID.String(), permByName(t, db, "release:create:own").ID.String(), nil)
		require.NoError(t, err)
		_, err = a.Roles.GrantPermission(ctx, admin, artist.ID.String(), permByName(t, db, "role:manage:any").ID.String(), nil)
		require.NoError(t, err)

		res, err := a.Roles.ResetToDefault(ctx, admin, artist.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 13, res.PermissionsSet)
		assert.Empty(t, res.MissingPermissions)

		want, _ := permission.Defaults(permission.RoleArtist)
		assert.Equal(t, sorted(want), grantedNames(t, db, artist.ID))

		var audits int64
		db.Model(&model.AuditLog{}).Where("action = ? AND entity_id = ?", model.ActionResetRole, artist.ID.String()).Count(&audits)
		assert.EqualValues(t, 1, audits)
	})

	t.Run("every system role matches its table", func(t *testing.T) {
		a, db, admin := setup(t)
		for _, sr := range permission.SystemRoles() {
			role := roleByName(t, db, sr.Name)
			res, err := a.Roles.ResetToDefault(ctx, admin, role.ID.String())
			require.NoError(t, err, sr.Name)

			want, _ := permission.Defaults(sr.Name)
			assert.Equal(t, len(want), res.PermissionsSet, sr.Name)
			assert.Equal(t, sorted(want), grantedNames(t, db, role.ID), sr.Name)
		}
	})

	t.Run("custom role is rejected and untouched", func(t *testing.T) {
		a, db, admin := setup(t)
		perm := permByName(t, db, "release:read:any")
		role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{
			Name:          "qa",
			PermissionIDs: []string{perm.ID.String()},
		})
		require.NoError(t, err)

		_, err = a.Roles.ResetToDefault(ctx, admin, role.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.InvalidOperation, apperr.KindOf(err))
		assert.Equal(t, "only system roles can be reset", apperr.PublicMessage(err))

		id := uuid.MustParse(role.ID)
		assert.Equal(t, []string{"release:read:any"}, grantedNames(t, db, id))
		assert.Equal(t, 1, roleByName(t, db, "qa").Version)
	})

	t.Run("unknown role", func(t *testing.T) {
		a, _, admin := setup(t)
		_, err := a.Roles.ResetToDefault(ctx, admin, uuid.NewString())
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("super_admin needs a super admin caller", func(t *testing.T) {
		a, db, admin := setup(t)
		super := roleByName(t, db, permission.RoleSuperAdmin)
		ca := actorOf(testutil.CreateTestUser(t, db, "ca@example.com", "password123", permission.RoleCompanyAdmin))

		_, err := a.Roles.ResetToDefault(ctx, ca, super.ID.String())
		assert.Equal(t, apperr.Authorization, apperr.KindOf(err))

		res, err := a.Roles.ResetToDefault(ctx, admin, super.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, res.PermissionsSet)
	})

	t.Run("master admin only when configured", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.MasterAdminID = uuid.NewString()
		a, db, admin := setupWith(t, cfg)
		super := roleByName(t, db, permission.RoleSuperAdmin)

		_, err := a.Roles.ResetToDefault(ctx, admin, super.ID.String())
		assert.Equal(t, apperr.Authorization, apperr.KindOf(err))
	})
}

func TestCreateRole(t *testing.T) {
	ctx := context.Background()
	a, _, admin := setup(t)

	role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{
		Name:        "Custom QA Tester",
		Description: "<b>QA</b> team",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom_qa_tester", role.Name)
	assert.Equal(t, "QA team", role.Description)
	assert.False(t, role.IsSystemRole)
	assert.Equal(t, 1, role.Version)

	tests := []struct {
		name string
		req  service.CreateRoleRequest
		kind apperr.Kind
	}{
		{"duplicate after slugging", service.CreateRoleRequest{Name: "custom-qa-tester"}, apperr.Conflict},
		{"reserved system name", service.CreateRoleRequest{Name: "Super Admin"}, apperr.Conflict},
		{"no usable characters", service.CreateRoleRequest{Name: "!!!"}, apperr.Validation},
		{"unknown permission", service.CreateRoleRequest{Name: "x", PermissionIDs: []string{uuid.NewString()}}, apperr.Validation},
		{"malformed permission id", service.CreateRoleRequest{Name: "y", PermissionIDs: []string{"nope"}}, apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Roles.CreateRole(ctx, admin, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	a, db, admin := setup(t)

	role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{Name: "reviewer"})
	require.NoError(t, err)
	holder := testutil.CreateTestUser(t, db, "rev@example.com", "password123", "reviewer")

	name := "Senior Reviewer"
	updated, err := a.Roles.UpdateRole(ctx, admin, role.ID, service.UpdateRoleRequest{Name: &name, ExpectedVersion: &role.Version})
	require.NoError(t, err)
	assert.Equal(t, "senior_reviewer", updated.Name)
	assert.Equal(t, 2, updated.Version)

	var u model.User
	require.NoError(t, db.First(&u, "id = ?", holder.ID).Error)
	assert.Equal(t, "senior_reviewer", u.Role)

	t.Run("stale version", func(t *testing.T) {
		desc := "late"
		_, err := a.Roles.UpdateRole(ctx, admin, role.ID, service.UpdateRoleRequest{Description: &desc, ExpectedVersion: &role.Version})
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	})

	t.Run("system role cannot be renamed", func(t *testing.T) {
		artist := roleByName(t, db, permission.RoleArtist)
		n := "musician"
		_, err := a.Roles.UpdateRole(ctx, admin, artist.ID.String(), service.UpdateRoleRequest{Name: &n})
		assert.Equal(t, apperr.InvalidOperation, apperr.KindOf(err))
	})
}

func TestDeleteRole(t *testing.T) {
	ctx := context.Background()

	t.Run("leaves no grants behind", func(t *testing.T) {
		a, db, admin := setup(t)
		ids := []string{
			permByName(t, db, "release:read:any").ID.String(),
			permByName(t, db, "analytics:read:any").ID.String(),
		}
		role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{Name: "temp", PermissionIDs: ids})
		require.NoError(t, err)
		assert.EqualValues(t, 2, role.PermissionCount)

		res, err := a.Roles.DeleteRole(ctx, admin, role.ID, "")
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.RemovedGrants)

		var n int64
		db.Model(&model.RolePermission{}).Where("role_id = ?", role.ID).Count(&n)
		assert.Zero(t, n)
		db.Model(&model.Role{}).Where("id = ?", role.ID).Count(&n)
		assert.Zero(t, n)
	})

	t.Run("holders need a target", func(t *testing.T) {
		a, db, admin := setup(t)
		role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{Name: "temp"})
		require.NoError(t, err)
		u := testutil.CreateTestUser(t, db, "t@example.com", "password123", "temp")

		_, err = a.Roles.DeleteRole(ctx, admin, role.ID, "")
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

		_, err = a.Roles.DeleteRole(ctx, admin, role.ID, "nonexistent")
		assert.Equal(t, apperr.Validation, apperr.KindOf(err))

		res, err := a.Roles.DeleteRole(ctx, admin, role.ID, permission.RoleArtist)
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.ReassignedUsers)

		var got model.User
		require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
		assert.Equal(t, permission.RoleArtist, got.Role)
	})

	t.Run("system roles stay", func(t *testing.T) {
		a, db, admin := setup(t)
		artist := roleByName(t, db, permission.RoleArtist)
		_, err := a.Roles.DeleteRole(ctx, admin, artist.ID.String(), "")
		assert.Equal(t, apperr.InvalidOperation, apperr.KindOf(err))
	})
}

func TestTogglePermission(t *testing.T) {
	ctx := context.Background()
	a, db, admin := setup(t)
	role, err := a.Roles.CreateRole(ctx, admin, service.CreateRoleRequest{Name: "toggler"})
	require.NoError(t, err)
	perm := permByName(t, db, "release:read:any")

	set, err := a.Roles.PermissionsForRole(ctx, "toggler")
	require.NoError(t, err)
	assert.False(t, set.IsGranted("release:read:any"))

	res, err := a.Roles.GrantPermission(ctx, admin, role.ID, perm.ID.String(), &role.Version)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Version)

	set, err = a.Roles.PermissionsForRole(ctx, "toggler")
	require.NoError(t, err)
	assert.True(t, set.IsGranted("release:read:any"), "cache must be invalidated on grant")

	again, err := a.Roles.GrantPermission(ctx, admin, role.ID, perm.ID.String(), nil)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, 2, again.Version)

	_, err = a.Roles.RevokePermission(ctx, admin, role.ID, perm.ID.String(), &role.Version)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	revoked, err := a.Roles.RevokePermission(ctx, admin, role.ID, perm.ID.String(), &res.Version)
	require.NoError(t, err)
	assert.True(t, revoked.Changed)
	assert.Equal(t, 3, revoked.Version)

	check, err := a.Roles.CheckPermission(ctx, role.ID, perm.ID.String())
	require.NoError(t, err)
	assert.False(t, check.Granted)

	_, err = a.Roles.GrantPermission(ctx, admin, role.ID, uuid.NewString(), nil)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCheckPermissionViaWildcard(t *testing.T) {
	ctx := context.Background()
	a, db, _ := setup(t)
	super := roleByName(t, db, permission.RoleSuperAdmin)
	perm := permByName(t, db, "release:delete:any")

	res, err := a.Roles.CheckPermission(ctx, super.ID.String(), perm.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.False(t, res.Direct)

	roles, err := a.Roles.ListRoles(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, roles)
	for _, r := range roles {
		if r.Name == permission.RoleSuperAdmin {
			assert.True(t, r.HasWildcard)
			assert.EqualValues(t, 1, r.PermissionCount)
		}
	}
}
