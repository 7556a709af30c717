package repository

import (
	"context"
	"time"

	"royalty-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository interface {
	List(ctx context.Context) ([]model.Permission, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error)
	FindByNames(ctx context.Context, names []string) ([]model.Permission, error)
	// Upsert inserts perm or refreshes the description of the row with the same name.
	Upsert(ctx context.Context, perm *model.Permission) error

	ListGranted(ctx context.Context, roleID uuid.UUID) ([]model.Permission, error)
	GrantedNamesByRoleName(ctx context.Context, roleName string) ([]string, error)
	HasGrant(ctx context.Context, roleID, permID uuid.UUID) (bool, error)
	CountGrants(ctx context.Context, roleID uuid.UUID) (int64, error)
	// Grant inserts the rows that are not already present and returns how many it inserted.
	Grant(ctx context.Context, roleID uuid.UUID, permIDs []uuid.UUID, at time.Time) (int64, error)
	Revoke(ctx context.Context, roleID, permID uuid.UUID) (int64, error)
	ClearGrants(ctx context.Context, roleID uuid.UUID) (int64, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) List(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("resource asc, name asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) FindByNames(ctx context.Context, names []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(names) == 0 {
		return perms, nil
	}
	if err := GetDB(ctx, r.db).Where("name IN ?", names).Order("name asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) Upsert(ctx context.Context, perm *model.Permission) error {
	db := GetDB(ctx, r.db)

	var existing model.Permission
	err := db.Where("name = ?", perm.Name).First(&existing).Error
	switch {
	case err == nil:
		perm.ID = existing.ID
		perm.CreatedAt = existing.CreatedAt
		return db.Model(&existing).Updates(map[string]any{
			"resource":    perm.Resource,
			"action":      perm.Action,
			"scope":       perm.Scope,
			"description": perm.Description,
		}).Error
	case IsNotFound(err):
		return db.Create(perm).Error
	default:
		return err
	}
}

func (r *permissionRepository) ListGranted(ctx context.Context, roleID uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.resource asc, permissions.name asc").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) GrantedNamesByRoleName(ctx context.Context, roleName string) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Raw(`
		SELECT p.name FROM permissions p
		INNER JOIN role_permissions rp ON rp.permission_id = p.id
		INNER JOIN roles r ON r.id = rp.role_id
		WHERE r.name = ?
		ORDER BY p.name
	`, roleName).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *permissionRepository) HasGrant(ctx context.Context, roleID, permID uuid.UUID) (bool, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permID).
		Count(&n).Error
	return n > 0, err
}

func (r *permissionRepository) CountGrants(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.RolePermission{}).Where("role_id = ?", roleID).Count(&n).Error
	return n, err
}

func (r *permissionRepository) Grant(ctx context.Context, roleID uuid.UUID, permIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(permIDs) == 0 {
		return 0, nil
	}
	rows := make([]model.RolePermission, 0, len(permIDs))
	for _, id := range permIDs {
		rows = append(rows, model.RolePermission{RoleID: roleID, PermissionID: id, GrantedAt: at})
	}
	res := GetDB(ctx, r.db).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

func (r *permissionRepository) Revoke(ctx context.Context, roleID, permID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("role_id = ? AND permission_id = ?", roleID, permID).
		Delete(&model.RolePermission{})
	return res.RowsAffected, res.Error
}

func (r *permissionRepository) ClearGrants(ctx context.Context, roleID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Where("role_id = ?", roleID).Delete(&model.RolePermission{})
	return res.RowsAffected, res.Error
}
