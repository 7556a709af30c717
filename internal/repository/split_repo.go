package repository

import (
	"context"

	"royalty-admin/internal/model"

	"gorm.io/gorm"
)

type SplitConfigRepository interface {
	Get(ctx context.Context, companyID string) (*model.RevenueSplitConfig, error)
	Create(ctx context.Context, cfg *model.RevenueSplitConfig) error
	// Update writes cfg if the stored version equals expectedVersion and
	// increments it. cfg.Version is set to the new version on success.
	Update(ctx context.Context, cfg *model.RevenueSplitConfig, expectedVersion int) error
}

type splitConfigRepository struct {
	db *gorm.DB
}

func NewSplitConfigRepository(db *gorm.DB) SplitConfigRepository {
	return &splitConfigRepository{db: db}
}

func (r *splitConfigRepository) Get(ctx context.Context, companyID string) (*model.RevenueSplitConfig, error) {
	var cfg model.RevenueSplitConfig
	if err := GetDB(ctx, r.db).First(&cfg, "company_id = ?", companyID).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *splitConfigRepository) Create(ctx context.Context, cfg *model.RevenueSplitConfig) error {
	return GetDB(ctx, r.db).Create(cfg).Error
}

func (r *splitConfigRepository) Update(ctx context.Context, cfg *model.RevenueSplitConfig, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.RevenueSplitConfig{}).
		Where("company_id = ? AND version = ?", cfg.CompanyID, expectedVersion).
		Updates(map[string]any{
			"distribution_partner_pct": cfg.DistributionPartnerPct,
			"company_admin_pct":        cfg.CompanyAdminPct,
			"super_admin_reserve_pct":  cfg.SuperAdminReservePct,
			"platform_maintenance_pct": cfg.PlatformMaintenancePct,
			"label_admin_pcts":         cfg.LabelAdminPcts,
			"updated_by":               cfg.UpdatedBy,
			"version":                  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	cfg.Version = expectedVersion + 1
	return nil
}
