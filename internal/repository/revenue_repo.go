package repository

import (
	"context"
	"fmt"
	"time"

	"royalty-admin/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LabelRevenueRow is the gross reported for one label in one currency.
type LabelRevenueRow struct {
	LabelKey     string          `gorm:"column:label_key"`
	Currency     string          `gorm:"column:currency"`
	TotalGross   decimal.Decimal `gorm:"column:total_gross"`
	EarningCount int64           `gorm:"column:earning_count"`
}

type EarningFilter struct {
	LabelKey string
	Currency string
	Start    *time.Time
	End      *time.Time
}

type RevenueRepository interface {
	Create(ctx context.Context, e *model.Earning) error
	List(ctx context.Context, filter EarningFilter, offset, limit int) ([]model.Earning, int64, error)
	SumByLabel(ctx context.Context, filter EarningFilter) ([]LabelRevenueRow, error)
}

type revenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

func (r *revenueRepository) Create(ctx context.Context, e *model.Earning) error {
	return GetDB(ctx, r.db).Create(e).Error
}

func (f EarningFilter) apply(db *gorm.DB) *gorm.DB {
	if f.LabelKey != "" {
		db = db.Where("label_key = ?", f.LabelKey)
	}
	if f.Currency != "" {
		db = db.Where("currency = ?", f.Currency)
	}
	if f.Start != nil {
		db = db.Where("reported_at >= ?", *f.Start)
	}
	if f.End != nil {
		db = db.Where("reported_at <= ?", *f.End)
	}
	return db
}

func (r *revenueRepository) List(ctx context.Context, filter EarningFilter, offset, limit int) ([]model.Earning, int64, error) {
	var rows []model.Earning
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Earning{}).Scopes(filter.apply).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Scopes(filter.apply).Order("reported_at desc").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *revenueRepository) SumByLabel(ctx context.Context, filter EarningFilter) ([]LabelRevenueRow, error) {
	var rows []LabelRevenueRow
	err := GetDB(ctx, r.db).Model(&model.Earning{}).
		Scopes(filter.apply).
		Select("label_key, currency, COALESCE(SUM(gross_amount), 0) AS total_gross, COUNT(*) AS earning_count").
		Group("label_key, currency").
		Order("label_key, currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	return rows, nil
}
