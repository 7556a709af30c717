package repository

import (
	"context"
	"errors"

	"royalty-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrVersionConflict means the row changed since the caller read it.
var ErrVersionConflict = errors.New("version conflict")

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListWithCounts(ctx context.Context) ([]model.RoleWithCount, error)
	// BumpVersion increments the version. When expected is non-nil the bump only
	// succeeds if the stored version still equals it.
	BumpVersion(ctx context.Context, id uuid.UUID, expected *int) (int, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Model(role).Select("name", "description", "version", "updated_at").Updates(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListWithCounts(ctx context.Context) ([]model.RoleWithCount, error) {
	db := GetDB(ctx, r.db)

	counts := db.Model(&model.RolePermission{}).
		Select("role_permissions.role_id, COUNT(*) AS permission_count, " +
			"MAX(CASE WHEN permissions.name = '*:*:*' THEN 1 ELSE 0 END) AS has_wildcard").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Group("role_permissions.role_id")

	var rows []model.RoleWithCount
	err := db.Table("roles").
		Select("roles.*, COALESCE(c.permission_count, 0) AS permission_count, COALESCE(c.has_wildcard, 0) = 1 AS has_wildcard").
		Joins("LEFT JOIN (?) AS c ON c.role_id = roles.id", counts).
		Order("roles.is_system_role DESC, roles.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *roleRepository) BumpVersion(ctx context.Context, id uuid.UUID, expected *int) (int, error) {
	db := GetDB(ctx, r.db)

	q := db.Model(&model.Role{}).Where("id = ?", id)
	if expected != nil {
		q = q.Where("version = ?", *expected)
	}
	res := q.UpdateColumn("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, ErrVersionConflict
	}

	role, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return role.Version, nil
}
