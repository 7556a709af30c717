package repository

import (
	"context"

	"royalty-admin/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserFilter narrows List. Empty fields match everything.
type UserFilter struct {
	Role   string
	Status string
}

// UserRepository defines the data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	CountByRole(ctx context.Context, roleName string) (int64, error)
	// ReassignRole moves every user holding from onto to.
	ReassignRole(ctx context.Context, from, to string) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	filtered := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(filtered).Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) CountByRole(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", roleName).Count(&n).Error
	return n, err
}

func (r *userRepository) ReassignRole(ctx context.Context, from, to string) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", from).Update("role", to)
	return res.RowsAffected, res.Error
}
