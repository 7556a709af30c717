package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/split"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Percentages arrive as strings ("15", "2.5") so no precision is lost in JSON.
type UpdateSplitConfigRequest struct {
	DistributionPartnerPct string            `json:"distribution_partner_pct" binding:"required"`
	CompanyAdminPct        string            `json:"company_admin_pct" binding:"required"`
	SuperAdminReservePct   string            `json:"super_admin_reserve_pct" binding:"required"`
	PlatformMaintenancePct string            `json:"platform_maintenance_pct" binding:"required"`
	LabelAdminPcts         map[string]string `json:"label_admin_pcts"` // nil keeps the stored labels
	ExpectedVersion        *int              `json:"expected_version"`
}

type PreviewSplitRequest struct {
	Gross string `json:"gross" binding:"required"`
}

type SplitConfigResponse struct {
	CompanyID              string                     `json:"company_id"`
	DistributionPartnerPct decimal.Decimal            `json:"distribution_partner_pct"`
	CompanyAdminPct        decimal.Decimal            `json:"company_admin_pct"`
	SuperAdminReservePct   decimal.Decimal            `json:"super_admin_reserve_pct"`
	PlatformMaintenancePct decimal.Decimal            `json:"platform_maintenance_pct"`
	LabelAdminPcts         map[string]decimal.Decimal `json:"label_admin_pcts"`
	Version                int                        `json:"version"`
	IsDefault              bool                       `json:"is_default"`
	UpdatedBy              string                     `json:"updated_by,omitempty"`
	UpdatedAt              string                     `json:"updated_at,omitempty"`
	Warnings               []string                   `json:"warnings"`
}

type PreviewResponse struct {
	Breakdown split.Breakdown `json:"breakdown"`
	Warnings  []string        `json:"warnings"`
	Version   int             `json:"config_version"`
}

type SplitService interface {
	GetConfig(ctx context.Context) (*SplitConfigResponse, error)
	UpdateConfig(ctx context.Context, actor Actor, req UpdateSplitConfigRequest) (*SplitConfigResponse, error)
	Preview(ctx context.Context, req PreviewSplitRequest) (*PreviewResponse, error)
	// Percentages returns the active configuration for calculators.
	Percentages(ctx context.Context) (split.Percentages, int, error)
}

type splitService struct {
	tx        repository.TransactionManager
	repo      repository.SplitConfigRepository
	audit     repository.AuditRepository
	events    EventPublisher
	companyID string
}

func NewSplitService(tx repository.TransactionManager, repo repository.SplitConfigRepository, audit repository.AuditRepository, events EventPublisher, companyID string) SplitService {
	if companyID == "" {
		companyID = "default"
	}
	return &splitService{tx: tx, repo: repo, audit: audit, events: publisherOrNoop(events), companyID: companyID}
}

func (s *splitService) load(ctx context.Context) (*model.RevenueSplitConfig, error) {
	cfg, err := s.repo.Get(ctx, s.companyID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load split config")
	}
	return cfg, nil
}

func (s *splitService) GetConfig(ctx context.Context) (*SplitConfigResponse, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return s.defaultResponse(), nil
	}
	return toSplitConfigResponse(cfg), nil
}

func (s *splitService) Percentages(ctx context.Context) (split.Percentages, int, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return split.Percentages{}, 0, err
	}
	if cfg == nil {
		return split.DefaultPercentages(), 0, nil
	}
	return percentagesOf(cfg), cfg.Version, nil
}

func (s *splitService) UpdateConfig(ctx context.Context, actor Actor, req UpdateSplitConfigRequest) (*SplitConfigResponse, error) {
	var out *model.RevenueSplitConfig
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.load(txCtx)
		if err != nil {
			return err
		}

		var labels map[string]decimal.Decimal
		switch {
		case req.LabelAdminPcts != nil:
			labels, err = parseLabelPcts(req.LabelAdminPcts)
			if err != nil {
				return err
			}
		case current != nil:
			labels = current.LabelAdminPcts.Data()
		default:
			labels = split.DefaultPercentages().Labels
		}

		p, err := parseStagePcts(req)
		if err != nil {
			return err
		}
		p.Labels = labels
		if err := p.Validate(); err != nil {
			return apperr.Wrap(apperr.Validation, err, "invalid split percentages")
		}

		cfg := &model.RevenueSplitConfig{
			CompanyID:              s.companyID,
			DistributionPartnerPct: p.DistributionPartner,
			CompanyAdminPct:        p.CompanyAdmin,
			SuperAdminReservePct:   p.SuperAdminReserve,
			PlatformMaintenancePct: p.PlatformMaintenance,
			LabelAdminPcts:         datatypes.NewJSONType(p.Labels),
			UpdatedBy:              actor.auditUserID(),
		}

		if current == nil {
			if req.ExpectedVersion != nil && *req.ExpectedVersion != 0 {
				return apperr.New(apperr.Conflict, "split config was modified by someone else (version 0, expected %d)", *req.ExpectedVersion)
			}
			cfg.Version = 1
			if err := s.repo.Create(txCtx, cfg); err != nil {
				return apperr.FromDB(err, "split config not found")
			}
		} else {
			expected := current.Version
			if req.ExpectedVersion != nil {
				expected = *req.ExpectedVersion
			}
			if err := s.repo.Update(txCtx, cfg, expected); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return apperr.Wrap(apperr.Conflict, err, "split config was modified by someone else (version %d, expected %d)", current.Version, expected)
				}
				return apperr.Wrap(apperr.Internal, err, "failed to save split config")
			}
		}

		if err := writeAudit(txCtx, s.audit, actor, model.ActionUpdateSplitConfig, s.companyID, "revenue_split",
			map[string]any{"version": cfg.Version, "stage_total": p.StageTotal(), "label_total": p.LabelTotal()}); err != nil {
			return err
		}

		out, err = s.repo.Get(txCtx, s.companyID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to reload split config")
		}
		return nil
	})
	if err != nil {
		return nil, asAppErr(err, "failed to update split config")
	}

	resp := toSplitConfigResponse(out)
	for _, w := range resp.Warnings {
		slog.WarnContext(ctx, "split config warning", "company", s.companyID, "warning", w)
	}
	slog.InfoContext(ctx, "split config updated", "company", s.companyID, "version", resp.Version, actor.logAttrs())
	s.events.Publish(EventSplitConfigUpdated, resp)
	return resp, nil
}

func (s *splitService) Preview(ctx context.Context, req PreviewSplitRequest) (*PreviewResponse, error) {
	gross, err := parseAmount(req.Gross, "gross")
	if err != nil {
		return nil, err
	}
	p, version, err := s.Percentages(ctx)
	if err != nil {
		return nil, err
	}
	b, err := split.Calculate(gross, p)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "cannot calculate split")
	}
	return &PreviewResponse{Breakdown: b, Warnings: nonNil(split.Warnings(p)), Version: version}, nil
}

func (s *splitService) defaultResponse() *SplitConfigResponse {
	d := split.DefaultPercentages()
	return &SplitConfigResponse{
		CompanyID:              s.companyID,
		DistributionPartnerPct: d.DistributionPartner,
		CompanyAdminPct:        d.CompanyAdmin,
		SuperAdminReservePct:   d.SuperAdminReserve,
		PlatformMaintenancePct: d.PlatformMaintenance,
		LabelAdminPcts:         d.Labels,
		IsDefault:              true,
		Warnings:               nonNil(split.Warnings(d)),
	}
}

func percentagesOf(cfg *model.RevenueSplitConfig) split.Percentages {
	return split.Percentages{
		DistributionPartner: cfg.DistributionPartnerPct,
		CompanyAdmin:        cfg.CompanyAdminPct,
		SuperAdminReserve:   cfg.SuperAdminReservePct,
		PlatformMaintenance: cfg.PlatformMaintenancePct,
		Labels:              cfg.LabelAdminPcts.Data(),
	}
}

func toSplitConfigResponse(cfg *model.RevenueSplitConfig) *SplitConfigResponse {
	p := percentagesOf(cfg)
	resp := &SplitConfigResponse{
		CompanyID:              cfg.CompanyID,
		DistributionPartnerPct: p.DistributionPartner,
		CompanyAdminPct:        p.CompanyAdmin,
		SuperAdminReservePct:   p.SuperAdminReserve,
		PlatformMaintenancePct: p.PlatformMaintenance,
		LabelAdminPcts:         p.Labels,
		Version:                cfg.Version,
		UpdatedAt:              cfg.UpdatedAt.Format(timeLayout),
		Warnings:               nonNil(split.Warnings(p)),
	}
	if resp.LabelAdminPcts == nil {
		resp.LabelAdminPcts = map[string]decimal.Decimal{}
	}
	if cfg.UpdatedBy != nil {
		resp.UpdatedBy = cfg.UpdatedBy.String()
	}
	return resp
}

func parseStagePcts(req UpdateSplitConfigRequest) (split.Percentages, error) {
	var p split.Percentages
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"distribution_partner_pct", req.DistributionPartnerPct, &p.DistributionPartner},
		{"company_admin_pct", req.CompanyAdminPct, &p.CompanyAdmin},
		{"super_admin_reserve_pct", req.SuperAdminReservePct, &p.SuperAdminReserve},
		{"platform_maintenance_pct", req.PlatformMaintenancePct, &p.PlatformMaintenance},
	}
	for _, f := range fields {
		v, err := parsePct(f.raw, f.name)
		if err != nil {
			return p, err
		}
		*f.dst = v
	}
	return p, nil
}

func parseLabelPcts(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, apperr.New(apperr.Validation, "label key must not be empty")
		}
		if _, dup := out[key]; dup {
			return nil, apperr.New(apperr.Validation, "label key '%s' is given more than once", key)
		}
		d, err := parsePct(v, "label_admin_pcts."+key)
		if err != nil {
			return nil, err
		}
		out[key] = d
	}
	return out, nil
}

func parsePct(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Validation, err, "invalid %s format", field)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, apperr.New(apperr.Validation, "%s must be between 0 and 100", field)
	}
	if err := checkScale(d, field); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Percentages and amounts are stored with four decimal places.
const maxScale = 4

func checkScale(d decimal.Decimal, field string) error {
	if !d.Equal(d.Truncate(maxScale)) {
		return apperr.New(apperr.Validation, "%s allows at most %d decimal places", field, maxScale)
	}
	return nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.Validation, err, "invalid %s format", field)
	}
	if d.IsNegative() {
		return decimal.Zero, apperr.New(apperr.Validation, "%s must not be negative", field)
	}
	return d, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
