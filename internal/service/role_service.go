package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/repository"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/microcosm-cc/bluemonday"
)

const maxDescriptionLen = 500

// --- DTOs ---

type CreateRoleRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

type UpdateRoleRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	ExpectedVersion *int    `json:"expected_version"`
}

type TogglePermissionRequest struct {
	ExpectedVersion *int `json:"expected_version"`
}

type RoleResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsSystemRole    bool   `json:"is_system_role"`
	Version         int    `json:"version"`
	PermissionCount int64  `json:"permission_count"`
	HasWildcard     bool   `json:"has_wildcard"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type PermissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

type RolePermissionsResponse struct {
	Role        RoleResponse         `json:"role"`
	Permissions []PermissionResponse `json:"permissions"`
	HasWildcard bool                 `json:"has_wildcard"`
}

type CheckPermissionResponse struct {
	RoleID         string `json:"role_id"`
	PermissionID   string `json:"permission_id"`
	PermissionName string `json:"permission_name"`
	Granted        bool   `json:"granted"`
	Direct         bool   `json:"direct"`
}

type ToggleResult struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
	Granted      bool   `json:"granted"`
	Changed      bool   `json:"changed"`
	Version      int    `json:"version"`
}

type ResetResult struct {
	RoleID             string   `json:"role_id"`
	RoleName           string   `json:"role_name"`
	PermissionsSet     int      `json:"permissions_set"`
	MissingPermissions []string `json:"missing_permissions"`
	Version            int      `json:"version"`
}

type DeleteRoleResult struct {
	RoleID          string `json:"role_id"`
	RoleName        string `json:"role_name"`
	RemovedGrants   int64  `json:"removed_grants"`
	ReassignedUsers int64  `json:"reassigned_users"`
	ReassignedTo    string `json:"reassigned_to,omitempty"`
}

type SeedResult struct {
	Permissions  int      `json:"permissions"`
	RolesCreated []string `json:"roles_created"`
	RolesSeeded  []string `json:"roles_seeded"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, actor Actor, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actor Actor, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actor Actor, id, reassignTo string) (*DeleteRoleResult, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	ListRolePermissions(ctx context.Context, id string) (*RolePermissionsResponse, error)
	CheckPermission(ctx context.Context, roleID, permID string) (*CheckPermissionResponse, error)
	GrantPermission(ctx context.Context, actor Actor, roleID, permID string, expectedVersion *int) (*ToggleResult, error)
	RevokePermission(ctx context.Context, actor Actor, roleID, permID string, expectedVersion *int) (*ToggleResult, error)
	ResetToDefault(ctx context.Context, actor Actor, roleID string) (*ResetResult, error)
	PermissionsForRole(ctx context.Context, roleName string) (permission.Set, error)
	SeedDefaults(ctx context.Context) (*SeedResult, error)
}

// RoleServiceDeps wires a RoleService.
type RoleServiceDeps struct {
	Tx            repository.TransactionManager
	Roles         repository.RoleRepository
	Permissions   repository.PermissionRepository
	Users         repository.UserRepository
	Audit         repository.AuditRepository
	Events        EventPublisher
	Accounts      AccountInvalidator
	MasterAdminID string
	CacheSize     int
	CacheTTL      time.Duration
}

type roleService struct {
	tx          repository.TransactionManager
	roles       repository.RoleRepository
	perms       repository.PermissionRepository
	users       repository.UserRepository
	audit       repository.AuditRepository
	events      EventPublisher
	accounts    AccountInvalidator
	masterAdmin string
	cache       *expirable.LRU[string, permission.Set]
	policy      *bluemonday.Policy
	now         func() time.Time
}

func NewRoleService(d RoleServiceDeps) RoleService {
	size := d.CacheSize
	if size <= 0 {
		size = 128
	}
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &roleService{
		tx:          d.Tx,
		roles:       d.Roles,
		perms:       d.Permissions,
		users:       d.Users,
		audit:       d.Audit,
		events:      publisherOrNoop(d.Events),
		accounts:    invalidatorOrNoop(d.Accounts),
		masterAdmin: strings.TrimSpace(d.MasterAdminID),
		cache:       expirable.NewLRU[string, permission.Set](size, nil, ttl),
		policy:      bluemonday.StrictPolicy(),
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	rows, err := s.roles.ListWithCounts(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to fetch roles")
	}
	res := make([]RoleResponse, 0, len(rows))
	for _, r := range rows {
		res = append(res, toRoleResponse(r.Role, r.PermissionCount, r.HasWildcard))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	role, err := s.loadRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.describeRole(ctx, role)
}

func (s *roleService) describeRole(ctx context.Context, role *model.Role) (*RoleResponse, error) {
	granted, err := s.perms.ListGranted(ctx, role.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to fetch role permissions")
	}
	resp := toRoleResponse(*role, int64(len(granted)), hasWildcard(granted))
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, actor Actor, req CreateRoleRequest) (*RoleResponse, error) {
	name := permission.Slugify(req.Name)
	if name == "" {
		return nil, apperr.New(apperr.Validation, "role name must contain letters or digits")
	}
	if permission.IsSystemRole(name) {
		return nil, apperr.New(apperr.Conflict, "role name '%s' is reserved for a system role", name)
	}
	desc, err := s.sanitizeDescription(req.Description)
	if err != nil {
		return nil, err
	}
	permIDs, err := parseIDs(req.PermissionIDs, "permission id")
	if err != nil {
		return nil, err
	}

	role := model.Role{Name: name, Description: desc}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roles.FindByName(txCtx, name); err == nil {
			return apperr.New(apperr.Conflict, "role '%s' already exists", name)
		} else if !repository.IsNotFound(err) {
			return apperr.Wrap(apperr.Internal, err, "failed to check role name")
		}

		if err := s.requirePermissions(txCtx, permIDs); err != nil {
			return err
		}
		if err := s.roles.Create(txCtx, &role); err != nil {
			return apperr.FromDB(err, "role not found")
		}
		if _, err := s.perms.Grant(txCtx, role.ID, permIDs, s.now()); err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to assign permissions")
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateRole, role.ID.String(), role.Name,
			map[string]any{"permission_ids": req.PermissionIDs, "requested_name": req.Name})
	})
	if err != nil {
		return nil, asAppErr(err, "failed to create role")
	}

	slog.InfoContext(ctx, "role created", "role", role.Name, "permissions", len(permIDs), actor.logAttrs())
	resp, err := s.describeRole(ctx, &role)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventRoleCreated, resp)
	return resp, nil
}

func (s *roleService) UpdateRole(ctx context.Context, actor Actor, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := parseID(id, "role id")
	if err != nil {
		return nil, err
	}

	var role *model.Role
	var oldName string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.roles.FindByID(txCtx, roleID)
		if err != nil {
			return apperr.FromDB(err, "role not found")
		}
		role = r
		oldName = r.Name
		if req.ExpectedVersion != nil && *req.ExpectedVersion != r.Version {
			return apperr.New(apperr.Conflict, "role was modified by someone else (version %d, expected %d)", r.Version, *req.ExpectedVersion)
		}

		if req.Name != nil {
			name := permission.Slugify(*req.Name)
			if name == "" {
				return apperr.New(apperr.Validation, "role name must contain letters or digits")
			}
			if name != r.Name {
				if r.IsSystemRole {
					return apperr.New(apperr.InvalidOperation, "system roles cannot be renamed")
				}
				if permission.IsSystemRole(name) {
					return apperr.New(apperr.Conflict, "role name '%s' is reserved for a system role", name)
				}
				if _, err := s.roles.FindByName(txCtx, name); err == nil {
					return apperr.New(apperr.Conflict, "role '%s' already exists", name)
				} else if !repository.IsNotFound(err) {
					return apperr.Wrap(apperr.Internal, err, "failed to check role name")
				}
				if _, err := s.users.ReassignRole(txCtx, r.Name, name); err != nil {
					return apperr.Wrap(apperr.Internal, err, "failed to move users to renamed role")
				}
				r.Name = name
			}
		}
		if req.Description != nil {
			desc, err := s.sanitizeDescription(*req.Description)
			if err != nil {
				return err
			}
			r.Description = desc
		}

		version, err := s.roles.BumpVersion(txCtx, r.ID, &r.Version)
		if err != nil {
			return versionErr(err)
		}
		r.Version = version
		if err := s.roles.Update(txCtx, r); err != nil {
			return apperr.FromDB(err, "role not found")
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdateRole, r.ID.String(), r.Name,
			map[string]any{"previous_name": oldName, "version": version})
	})
	if err != nil {
		return nil, asAppErr(err, "failed to update role")
	}

	s.cache.Remove(oldName)
	s.cache.Remove(role.Name)
	if oldName != role.Name {
		s.accounts.Purge()
	}
	resp, err := s.describeRole(ctx, role)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventRoleUpdated, resp)
	return resp, nil
}

func (s *roleService) DeleteRole(ctx context.Context, actor Actor, id, reassignTo string) (*DeleteRoleResult, error) {
	roleID, err := parseID(id, "role id")
	if err != nil {
		return nil, err
	}
	reassignTo = strings.TrimSpace(reassignTo)

	result := &DeleteRoleResult{RoleID: roleID.String(), ReassignedTo: reassignTo}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roles.FindByID(txCtx, roleID)
		if err != nil {
			return apperr.FromDB(err, "role not found")
		}
		result.RoleName = role.Name
		if role.IsSystemRole {
			return apperr.New(apperr.InvalidOperation, "system roles cannot be deleted")
		}

		holders, err := s.users.CountByRole(txCtx, role.Name)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to count role holders")
		}
		if holders > 0 {
			if reassignTo == "" {
				return apperr.New(apperr.Conflict, "role '%s' is assigned to %d user(s); provide reassign_to", role.Name, holders)
			}
			if reassignTo == role.Name {
				return apperr.New(apperr.Validation, "cannot reassign users to the role being deleted")
			}
			if _, err := s.roles.FindByName(txCtx, reassignTo); err != nil {
				if repository.IsNotFound(err) {
					return apperr.New(apperr.Validation, "reassign_to role '%s' does not exist", reassignTo)
				}
				return apperr.Wrap(apperr.Internal, err, "failed to look up reassign_to role")
			}
			moved, err := s.users.ReassignRole(txCtx, role.Name, reassignTo)
			if err != nil {
				return apperr.Wrap(apperr.Internal, err, "failed to reassign users")
			}
			result.ReassignedUsers = moved
		} else {
			result.ReassignedTo = ""
		}

		removed, err := s.perms.ClearGrants(txCtx, role.ID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to clear role permissions")
		}
		result.RemovedGrants = removed
		if err := s.roles.Delete(txCtx, role.ID); err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to delete role")
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeleteRole, role.ID.String(), role.Name, result)
	})
	if err != nil {
		return nil, asAppErr(err, "failed to delete role")
	}

	s.cache.Remove(result.RoleName)
	if result.ReassignedUsers > 0 {
		s.accounts.Purge()
	}
	slog.InfoContext(ctx, "role deleted", "role", result.RoleName, "reassigned_users", result.ReassignedUsers, actor.logAttrs())
	s.events.Publish(EventRoleDeleted, result)
	return result, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.perms.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to fetch permissions")
	}
	return toPermissionResponses(perms), nil
}

func (s *roleService) ListRolePermissions(ctx context.Context, id string) (*RolePermissionsResponse, error) {
	role, err := s.loadRole(ctx, id)
	if err != nil {
		return nil, err
	}
	granted, err := s.perms.ListGranted(ctx, role.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to fetch role permissions")
	}
	wild := hasWildcard(granted)
	return &RolePermissionsResponse{
		Role:        toRoleResponse(*role, int64(len(granted)), wild),
		Permissions: toPermissionResponses(granted),
		HasWildcard: wild,
	}, nil
}

func (s *roleService) CheckPermission(ctx context.Context, roleID, permID string) (*CheckPermissionResponse, error) {
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perm, err := s.loadPermission(ctx, permID)
	if err != nil {
		return nil, err
	}
	granted, err := s.perms.ListGranted(ctx, role.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to fetch role permissions")
	}

	names := make([]string, 0, len(granted))
	direct := false
	for _, g := range granted {
		names = append(names, g.Name)
		if g.ID == perm.ID {
			direct = true
		}
	}
	return &CheckPermissionResponse{
		RoleID:         role.ID.String(),
		PermissionID:   perm.ID.String(),
		PermissionName: perm.Name,
		Granted:        permission.NewSet(names).IsGranted(perm.Name),
		Direct:         direct,
	}, nil
}

func (s *roleService) GrantPermission(ctx context.Context, actor Actor, roleID, permID string, expectedVersion *int) (*ToggleResult, error) {
	return s.toggle(ctx, actor, roleID, permID, expectedVersion, true)
}

func (s *roleService) RevokePermission(ctx context.Context, actor Actor, roleID, permID string, expectedVersion *int) (*ToggleResult, error) {
	return s.toggle(ctx, actor, roleID, permID, expectedVersion, false)
}

// toggle sets one grant to the wanted state. Repeating a toggle is a no-op that
// leaves the version untouched.
func (s *roleService) toggle(ctx context.Context, actor Actor, roleIDStr, permIDStr string, expectedVersion *int, grant bool) (*ToggleResult, error) {
	roleID, err := parseID(roleIDStr, "role id")
	if err != nil {
		return nil, err
	}
	permID, err := parseID(permIDStr, "permission id")
	if err != nil {
		return nil, err
	}

	var role *model.Role
	var perm *model.Permission
	result := &ToggleResult{RoleID: roleID.String(), PermissionID: permID.String(), Granted: grant}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.roles.FindByID(txCtx, roleID)
		if err != nil {
			return apperr.FromDB(err, "role not found")
		}
		role = r
		if expectedVersion != nil && *expectedVersion != r.Version {
			return apperr.New(apperr.Conflict, "role was modified by someone else (version %d, expected %d)", r.Version, *expectedVersion)
		}
		p, err := s.perms.FindByID(txCtx, permID)
		if err != nil {
			return apperr.FromDB(err, "permission not found")
		}
		perm = p

		var changed int64
		if grant {
			changed, err = s.perms.Grant(txCtx, roleID, []uuid.UUID{permID}, s.now())
		} else {
			changed, err = s.perms.Revoke(txCtx, roleID, permID)
		}
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to update role permissions")
		}

		result.Version = r.Version
		if changed == 0 {
			return nil
		}
		result.Changed = true
		version, err := s.roles.BumpVersion(txCtx, roleID, &r.Version)
		if err != nil {
			return versionErr(err)
		}
		result.Version = version

		action := model.ActionGrantPermission
		if !grant {
			action = model.ActionRevokePermission
		}
		return writeAudit(txCtx, s.audit, actor, action, r.ID.String(), r.Name,
			map[string]any{"permission": p.Name, "version": version})
	})
	if err != nil {
		return nil, asAppErr(err, "failed to update role permissions")
	}

	if result.Changed {
		s.cache.Remove(role.Name)
		event := EventPermissionGranted
		if !grant {
			event = EventPermissionRevoked
		}
		s.events.Publish(event, map[string]any{"role": role.Name, "permission": perm.Name, "version": result.Version})
	}
	return result, nil
}

func (s *roleService) ResetToDefault(ctx context.Context, actor Actor, roleIDStr string) (*ResetResult, error) {
	roleID, err := parseID(roleIDStr, "role id")
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, apperr.FromDB(err, "role not found")
	}
	if !role.IsSystemRole {
		return nil, apperr.New(apperr.InvalidOperation, "only system roles can be reset")
	}
	if role.Name == permission.RoleSuperAdmin && !s.mayResetSuperAdmin(actor) {
		return nil, apperr.New(apperr.Authorization, "only the master admin can reset super_admin permissions")
	}
	defaults, ok := permission.Defaults(role.Name)
	if !ok || len(defaults) == 0 {
		return nil, apperr.New(apperr.InvalidOperation, "no defaults defined for role '%s'", role.Name)
	}

	result := &ResetResult{RoleID: role.ID.String(), RoleName: role.Name, MissingPermissions: []string{}}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.perms.ClearGrants(txCtx, role.ID); err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to clear existing permissions")
		}
		found, err := s.perms.FindByNames(txCtx, defaults)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to fetch permissions")
		}

		ids := make([]uuid.UUID, 0, len(found))
		present := make(map[string]bool, len(found))
		for _, p := range found {
			ids = append(ids, p.ID)
			present[p.Name] = true
		}
		for _, n := range defaults {
			if !present[n] {
				result.MissingPermissions = append(result.MissingPermissions, n)
			}
		}

		inserted, err := s.perms.Grant(txCtx, role.ID, ids, s.now())
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to set default permissions")
		}
		result.PermissionsSet = int(inserted)

		version, err := s.roles.BumpVersion(txCtx, role.ID, nil)
		if err != nil {
			return versionErr(err)
		}
		result.Version = version
		return writeAudit(txCtx, s.audit, actor, model.ActionResetRole, role.ID.String(), role.Name, result)
	})
	if err != nil {
		return nil, asAppErr(err, "failed to reset role")
	}

	s.cache.Remove(role.Name)
	if len(result.MissingPermissions) > 0 {
		slog.WarnContext(ctx, "default permissions missing from catalog",
			"role", role.Name, "missing", result.MissingPermissions)
	}
	slog.InfoContext(ctx, "role reset to defaults", "role", role.Name, "permissions_set", result.PermissionsSet, actor.logAttrs())
	s.events.Publish(EventRoleReset, result)
	return result, nil
}

// mayResetSuperAdmin: with a master admin configured only that user may reset
// super_admin; otherwise any super_admin may.
func (s *roleService) mayResetSuperAdmin(actor Actor) bool {
	if s.masterAdmin != "" {
		return actor.UserID != uuid.Nil && strings.EqualFold(actor.UserID.String(), s.masterAdmin)
	}
	return actor.Role == permission.RoleSuperAdmin
}

func (s *roleService) PermissionsForRole(ctx context.Context, roleName string) (permission.Set, error) {
	if set, ok := s.cache.Get(roleName); ok {
		return set, nil
	}
	names, err := s.perms.GrantedNamesByRoleName(ctx, roleName)
	if err != nil {
		return permission.Set{}, apperr.Wrap(apperr.Internal, err, "failed to load role permissions")
	}
	set := permission.NewSet(names)
	s.cache.Add(roleName, set)
	return set, nil
}

// SeedDefaults upserts the permission catalog and system roles. Defaults are
// applied only to roles that currently hold no grants.
func (s *roleService) SeedDefaults(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{RolesCreated: []string{}, RolesSeeded: []string{}}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		catalog := permission.Catalog()
		for _, name := range catalog {
			t, err := permission.Parse(name)
			if err != nil {
				return apperr.Wrap(apperr.Internal, err, "invalid catalog permission")
			}
			perm := &model.Permission{
				Name:        name,
				Resource:    t.Resource.String(),
				Action:      t.Action.String(),
				Scope:       t.Scope.String(),
				Description: permission.Describe(name),
			}
			if err := s.perms.Upsert(txCtx, perm); err != nil {
				return apperr.Wrap(apperr.Internal, err, "failed to seed permission '%s'", name)
			}
		}
		result.Permissions = len(catalog)

		for _, sr := range permission.SystemRoles() {
			role, err := s.roles.FindByName(txCtx, sr.Name)
			switch {
			case repository.IsNotFound(err):
				role = &model.Role{Name: sr.Name, Description: sr.Description, IsSystemRole: true}
				if err := s.roles.Create(txCtx, role); err != nil {
					return apperr.Wrap(apperr.Internal, err, "failed to seed role '%s'", sr.Name)
				}
				result.RolesCreated = append(result.RolesCreated, sr.Name)
			case err != nil:
				return apperr.Wrap(apperr.Internal, err, "failed to look up role '%s'", sr.Name)
			case !role.IsSystemRole:
				slog.WarnContext(ctx, "custom role shadows a system role name; skipping", "role", sr.Name)
				continue
			}

			n, err := s.perms.CountGrants(txCtx, role.ID)
			if err != nil {
				return apperr.Wrap(apperr.Internal, err, "failed to count grants for '%s'", sr.Name)
			}
			if n > 0 {
				continue
			}
			names, _ := permission.Defaults(sr.Name)
			found, err := s.perms.FindByNames(txCtx, names)
			if err != nil {
				return apperr.Wrap(apperr.Internal, err, "failed to fetch permissions")
			}
			ids := make([]uuid.UUID, 0, len(found))
			for _, p := range found {
				ids = append(ids, p.ID)
			}
			if _, err := s.perms.Grant(txCtx, role.ID, ids, s.now()); err != nil {
				return apperr.Wrap(apperr.Internal, err, "failed to grant defaults to '%s'", sr.Name)
			}
			result.RolesSeeded = append(result.RolesSeeded, sr.Name)
		}
		return nil
	})
	if err != nil {
		return nil, asAppErr(err, "failed to seed roles")
	}
	s.cache.Purge()
	slog.InfoContext(ctx, "seeded roles and permissions",
		"permissions", result.Permissions, "created", result.RolesCreated, "seeded", result.RolesSeeded)
	return result, nil
}

// --- Helpers ---

func (s *roleService) loadRole(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := parseID(id, "role id")
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, apperr.FromDB(err, "role not found")
	}
	return role, nil
}

func (s *roleService) loadPermission(ctx context.Context, id string) (*model.Permission, error) {
	permID, err := parseID(id, "permission id")
	if err != nil {
		return nil, err
	}
	perm, err := s.perms.FindByID(ctx, permID)
	if err != nil {
		return nil, apperr.FromDB(err, "permission not found")
	}
	return perm, nil
}

func (s *roleService) requirePermissions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.perms.FindByIDs(ctx, ids)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "failed to fetch permissions")
	}
	known := make(map[uuid.UUID]bool, len(found))
	for _, p := range found {
		known[p.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.Validation, "unknown permission ids: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *roleService) sanitizeDescription(desc string) (string, error) {
	clean := strings.TrimSpace(s.policy.Sanitize(desc))
	if len(clean) > maxDescriptionLen {
		return "", apperr.New(apperr.Validation, "description must be at most %d characters", maxDescriptionLen)
	}
	return clean, nil
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.Validation, err, "invalid %s", what)
	}
	return id, nil
}

// parseIDs parses and de-duplicates ids, keeping first-seen order.
func parseIDs(raw []string, what string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := parseID(r, what)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, "invalid %s '%s'", what, r)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func versionErr(err error) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperr.Wrap(apperr.Conflict, err, "role was modified by someone else")
	}
	return apperr.FromDB(err, "role not found")
}

// asAppErr keeps typed errors and wraps anything else as Internal.
func asAppErr(err error, msg string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Internal, err, "%s", msg)
}

func hasWildcard(perms []model.Permission) bool {
	for _, p := range perms {
		if p.Name == permission.All {
			return true
		}
	}
	return false
}

func toRoleResponse(r model.Role, count int64, wildcard bool) RoleResponse {
	return RoleResponse{
		ID:              r.ID.String(),
		Name:            r.Name,
		Description:     r.Description,
		IsSystemRole:    r.IsSystemRole,
		Version:         r.Version,
		PermissionCount: count,
		HasWildcard:     wildcard,
		CreatedAt:       r.CreatedAt.Format(timeLayout),
		UpdatedAt:       r.UpdatedAt.Format(timeLayout),
	}
}

func toPermissionResponses(perms []model.Permission) []PermissionResponse {
	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, PermissionResponse{
			ID:          p.ID.String(),
			Name:        p.Name,
			Resource:    p.Resource,
			Action:      p.Action,
			Scope:       p.Scope,
			Description: p.Description,
		})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Resource != res[j].Resource {
			return res[i].Resource < res[j].Resource
		}
		return res[i].Name < res[j].Name
	})
	return res
}
