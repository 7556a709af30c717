package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LabelPercentages maps a label key to its share of the label pool.
type LabelPercentages = map[string]decimal.Decimal

// RevenueSplitConfig is the stored split configuration for one company.
type RevenueSplitConfig struct {
	CompanyID              string                               `gorm:"type:varchar(64);primaryKey" json:"company_id"`
	DistributionPartnerPct decimal.Decimal                      `gorm:"type:decimal(7,4);not null" json:"distribution_partner_pct"`
	CompanyAdminPct        decimal.Decimal                      `gorm:"type:decimal(7,4);not null" json:"company_admin_pct"`
	SuperAdminReservePct   decimal.Decimal                      `gorm:"type:decimal(7,4);not null" json:"super_admin_reserve_pct"`
	PlatformMaintenancePct decimal.Decimal                      `gorm:"type:decimal(7,4);not null" json:"platform_maintenance_pct"`
	LabelAdminPcts         datatypes.JSONType[LabelPercentages] `json:"label_admin_pcts"`
	Version                int                                  `gorm:"not null;default:1" json:"version"`
	UpdatedBy              *uuid.UUID                           `gorm:"type:char(36)" json:"updated_by"`
	CreatedAt              time.Time                            `json:"created_at"`
	UpdatedAt              time.Time                            `json:"updated_at"`
}

// Earning is one reported gross amount for an asset.
type Earning struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	AssetID     string          `gorm:"type:varchar(64);not null;index" json:"asset_id"`
	AssetTitle  string          `gorm:"type:varchar(255)" json:"asset_title"`
	LabelKey    string          `gorm:"type:varchar(100);not null;index" json:"label_key"`
	GrossAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_amount"`
	Currency    string          `gorm:"type:varchar(3);not null;default:GBP" json:"currency"`
	ReportedAt  time.Time       `gorm:"not null;index" json:"reported_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (e *Earning) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
