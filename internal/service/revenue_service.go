package service

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/model"
	"royalty-admin/internal/repository"
	"royalty-admin/internal/split"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type RecordEarningRequest struct {
	AssetID     string `json:"asset_id" binding:"required"`
	AssetTitle  string `json:"asset_title"`
	LabelKey    string `json:"label_key" binding:"required"`
	GrossAmount string `json:"gross_amount" binding:"required"` // decimal string
	Currency    string `json:"currency"`
	ReportedAt  string `json:"reported_at"` // RFC3339 or YYYY-MM-DD, defaults to now
}

type EarningResponse struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	AssetTitle  string          `json:"asset_title"`
	LabelKey    string          `json:"label_key"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Currency    string          `json:"currency"`
	ReportedAt  string          `json:"reported_at"`
	CreatedAt   string          `json:"created_at"`
}

type EarningFilter struct {
	LabelKey  string
	Currency  string // required by Summary when earnings span currencies
	StartDate string // RFC3339 or YYYY-MM-DD
	EndDate   string
}

type LabelEarnings struct {
	LabelKey     string          `json:"label_key"`
	Gross        decimal.Decimal `json:"gross"`
	EarningCount int64           `json:"earning_count"`
	Configured   bool            `json:"configured"`
	LabelShare   decimal.Decimal `json:"label_share"`
	Breakdown    split.Breakdown `json:"breakdown"`
}

type EarningsSummary struct {
	StartDate     string          `json:"start_date,omitempty"`
	EndDate       string          `json:"end_date,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	EarningCount  int64           `json:"earning_count"`
	Platform      split.Breakdown `json:"platform"`
	Labels        []LabelEarnings `json:"labels"`
	ConfigVersion int             `json:"config_version"`
	Warnings      []string        `json:"warnings"`
}

// --- Interface ---

type RevenueService interface {
	RecordEarning(ctx context.Context, actor Actor, req RecordEarningRequest) (*EarningResponse, error)
	ListEarnings(ctx context.Context, filter EarningFilter, offset, limit int) ([]EarningResponse, int64, error)
	Summary(ctx context.Context, filter EarningFilter) (*EarningsSummary, error)
}

type revenueService struct {
	tx     repository.TransactionManager
	repo   repository.RevenueRepository
	splits SplitService
	audit  repository.AuditRepository
	events EventPublisher
}

func NewRevenueService(tx repository.TransactionManager, repo repository.RevenueRepository, splits SplitService, audit repository.AuditRepository, events EventPublisher) RevenueService {
	return &revenueService{tx: tx, repo: repo, splits: splits, audit: audit, events: publisherOrNoop(events)}
}

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// --- Implementation ---

func (s *revenueService) RecordEarning(ctx context.Context, actor Actor, req RecordEarningRequest) (*EarningResponse, error) {
	gross, err := parseAmount(req.GrossAmount, "gross_amount")
	if err != nil {
		return nil, err
	}
	if err := checkScale(gross, "gross_amount"); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "GBP"
	}
	if !currencyRe.MatchString(currency) {
		return nil, apperr.New(apperr.Validation, "currency must be a three-letter ISO code")
	}
	reportedAt := time.Now().UTC()
	if req.ReportedAt != "" {
		t, err := parseDate(req.ReportedAt, "reported_at", false)
		if err != nil {
			return nil, err
		}
		reportedAt = *t
	}

	e := &model.Earning{
		AssetID:     strings.TrimSpace(req.AssetID),
		AssetTitle:  strings.TrimSpace(req.AssetTitle),
		LabelKey:    strings.TrimSpace(req.LabelKey),
		GrossAmount: gross,
		Currency:    currency,
		ReportedAt:  reportedAt,
	}
	if e.AssetID == "" || e.LabelKey == "" {
		return nil, apperr.New(apperr.Validation, "asset_id and label_key are required")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, e); err != nil {
			return apperr.Wrap(apperr.Internal, err, "failed to record earning")
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionRecordEarning, e.ID.String(), e.AssetTitle,
			map[string]any{"label_key": e.LabelKey, "gross_amount": e.GrossAmount, "currency": e.Currency})
	})
	if err != nil {
		return nil, asAppErr(err, "failed to record earning")
	}

	resp := toEarningResponse(e)
	s.events.Publish(EventEarningRecorded, resp)
	return &resp, nil
}

func (s *revenueService) ListEarnings(ctx context.Context, filter EarningFilter, offset, limit int) ([]EarningResponse, int64, error) {
	f, err := toRepoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, f, offset, limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, err, "failed to list earnings")
	}
	res := make([]EarningResponse, 0, len(rows))
	for i := range rows {
		res = append(res, toEarningResponse(&rows[i]))
	}
	return res, total, nil
}

// Summary aggregates gross per label and runs the split calculator over the
// platform total and over each label's gross.
func (s *revenueService) Summary(ctx context.Context, filter EarningFilter) (*EarningsSummary, error) {
	f, err := toRepoFilter(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.SumByLabel(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to aggregate earnings")
	}
	currency, err := singleCurrency(rows)
	if err != nil {
		return nil, err
	}
	p, version, err := s.splits.Percentages(ctx)
	if err != nil {
		return nil, err
	}

	summary := &EarningsSummary{
		StartDate:     filter.StartDate,
		EndDate:       filter.EndDate,
		Currency:      currency,
		TotalGross:    decimal.Zero,
		Labels:        make([]LabelEarnings, 0, len(rows)),
		ConfigVersion: version,
		Warnings:      nonNil(split.Warnings(p)),
	}
	for _, r := range rows {
		b, err := split.Calculate(r.TotalGross, p)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "failed to split earnings for '%s'", r.LabelKey)
		}
		le := LabelEarnings{
			LabelKey:     r.LabelKey,
			Gross:        r.TotalGross,
			EarningCount: r.EarningCount,
			LabelShare:   decimal.Zero,
			Breakdown:    b,
		}
		if share, ok := b.Label(r.LabelKey); ok {
			le.Configured = true
			le.LabelShare = share.Amount
		}
		summary.Labels = append(summary.Labels, le)
		summary.TotalGross = summary.TotalGross.Add(r.TotalGross)
		summary.EarningCount += r.EarningCount
	}

	summary.Platform, err = split.Calculate(summary.TotalGross, p)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to split platform earnings")
	}
	return summary, nil
}

// --- Helpers ---

// singleCurrency refuses to add amounts reported in different currencies.
func singleCurrency(rows []repository.LabelRevenueRow) (string, error) {
	var seen []string
	for _, r := range rows {
		if !slices.Contains(seen, r.Currency) {
			seen = append(seen, r.Currency)
		}
	}
	if len(seen) > 1 {
		slices.Sort(seen)
		return "", apperr.New(apperr.Validation, "earnings span currencies %s; filter by currency", strings.Join(seen, ", "))
	}
	if len(seen) == 1 {
		return seen[0], nil
	}
	return "", nil
}

func toRepoFilter(f EarningFilter) (repository.EarningFilter, error) {
	out := repository.EarningFilter{LabelKey: strings.TrimSpace(f.LabelKey)}
	if c := strings.ToUpper(strings.TrimSpace(f.Currency)); c != "" {
		if !currencyRe.MatchString(c) {
			return out, apperr.New(apperr.Validation, "currency must be a three-letter ISO code")
		}
		out.Currency = c
	}
	var err error
	if f.StartDate != "" {
		if out.Start, err = parseDate(f.StartDate, "start_date", false); err != nil {
			return out, err
		}
	}
	if f.EndDate != "" {
		if out.End, err = parseDate(f.EndDate, "end_date", true); err != nil {
			return out, err
		}
	}
	if out.Start != nil && out.End != nil && out.End.Before(*out.Start) {
		return out, apperr.New(apperr.Validation, "end_date must not be before start_date")
	}
	return out, nil
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseDate(raw, field string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "invalid %s format, use RFC3339 or YYYY-MM-DD", field)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func toEarningResponse(e *model.Earning) EarningResponse {
	return EarningResponse{
		ID:          e.ID.String(),
		AssetID:     e.AssetID,
		AssetTitle:  e.AssetTitle,
		LabelKey:    e.LabelKey,
		GrossAmount: e.GrossAmount,
		Currency:    e.Currency,
		ReportedAt:  e.ReportedAt.Format(timeLayout),
		CreatedAt:   e.CreatedAt.Format(timeLayout),
	}
}
