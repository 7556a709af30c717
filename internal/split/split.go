// Package split computes the cascading revenue split: fixed stages taken off
// the gross amount, then the remaining pool divided between labels.
package split

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid split input")

var hundred = decimal.NewFromInt(100)

// Percentages is a split configuration. Every value is on a 0..100 scale.
type Percentages struct {
	DistributionPartner decimal.Decimal
	CompanyAdmin        decimal.Decimal
	SuperAdminReserve   decimal.Decimal
	PlatformMaintenance decimal.Decimal
	Labels              map[string]decimal.Decimal
}

// DefaultPercentages returns the platform's out-of-the-box configuration.
func DefaultPercentages() Percentages {
	return Percentages{
		DistributionPartner: decimal.NewFromInt(15),
		CompanyAdmin:        decimal.NewFromInt(10),
		SuperAdminReserve:   decimal.NewFromInt(2),
		PlatformMaintenance: decimal.NewFromInt(1),
		Labels: map[string]decimal.Decimal{
			"yhwh-msc":              decimal.NewFromInt(5),
			"major-label":           decimal.NewFromInt(25),
			"k-entertainment":       decimal.NewFromInt(30),
			"indie-collective":      decimal.NewFromInt(20),
			"distribution-partners": decimal.NewFromInt(15),
		},
	}
}

// StageTotal is the sum of the four stages taken off the gross.
func (p Percentages) StageTotal() decimal.Decimal {
	return p.DistributionPartner.Add(p.CompanyAdmin).Add(p.SuperAdminReserve).Add(p.PlatformMaintenance)
}

func (p Percentages) LabelTotal() decimal.Decimal {
	total := decimal.Zero
	for _, v := range p.Labels {
		total = total.Add(v)
	}
	return total
}

// LabelKeys returns label keys in sorted order.
func (p Percentages) LabelKeys() []string {
	keys := make([]string, 0, len(p.Labels))
	for k := range p.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every percentage lies in [0,100] and label keys are
// non-empty. Totals are not checked; see Warnings.
func (p Percentages) Validate() error {
	stages := []struct {
		name string
		v    decimal.Decimal
	}{
		{"distribution_partner_pct", p.DistributionPartner},
		{"company_admin_pct", p.CompanyAdmin},
		{"super_admin_reserve_pct", p.SuperAdminReserve},
		{"platform_maintenance_pct", p.PlatformMaintenance},
	}
	for _, s := range stages {
		if !inRange(s.v) {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %s", ErrInvalidInput, s.name, s.v)
		}
	}
	for _, k := range p.LabelKeys() {
		if k == "" {
			return fmt.Errorf("%w: label key must not be empty", ErrInvalidInput)
		}
		if !inRange(p.Labels[k]) {
			return fmt.Errorf("%w: label %q percentage must be between 0 and 100, got %s", ErrInvalidInput, k, p.Labels[k])
		}
	}
	return nil
}

func inRange(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(hundred)
}

// Warnings reports configurations that are accepted but probably wrong.
func Warnings(p Percentages) []string {
	var out []string
	if st := p.StageTotal(); st.GreaterThan(hundred) {
		out = append(out, fmt.Sprintf("stage percentages total %s%%, which exceeds 100%%; the label pool will be negative", st))
	}
	if len(p.Labels) > 0 {
		if lt := p.LabelTotal(); !lt.Equal(hundred) {
			out = append(out, fmt.Sprintf("label percentages total %s%%, not 100%%", lt))
		}
	}
	return out
}

// LabelShare is one label's cut of the pool.
type LabelShare struct {
	Label  string          `json:"label"`
	Pct    decimal.Decimal `json:"pct"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the result of applying Percentages to a gross amount.
type Breakdown struct {
	Gross               decimal.Decimal `json:"gross"`
	DistributionPartner decimal.Decimal `json:"distribution_partner_share"`
	CompanyAdmin        decimal.Decimal `json:"company_admin_share"`
	SuperAdminReserve   decimal.Decimal `json:"super_admin_reserve"`
	PlatformMaintenance decimal.Decimal `json:"platform_maintenance"`
	Pool                decimal.Decimal `json:"label_pool"`
	Labels              []LabelShare    `json:"labels"`
	Unallocated         decimal.Decimal `json:"unallocated"`
}

// Calculate applies p to gross. Stages are each a share of the gross; label
// shares are each a share of what remains after the stages. Results are not
// rounded.
func Calculate(gross decimal.Decimal, p Percentages) (Breakdown, error) {
	if gross.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: gross must not be negative, got %s", ErrInvalidInput, gross)
	}
	if err := p.Validate(); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Gross:               gross,
		DistributionPartner: share(gross, p.DistributionPartner),
		CompanyAdmin:        share(gross, p.CompanyAdmin),
		SuperAdminReserve:   share(gross, p.SuperAdminReserve),
		PlatformMaintenance: share(gross, p.PlatformMaintenance),
	}
	b.Pool = gross.Sub(b.DistributionPartner).Sub(b.CompanyAdmin).Sub(b.SuperAdminReserve).Sub(b.PlatformMaintenance)

	allocated := decimal.Zero
	b.Labels = make([]LabelShare, 0, len(p.Labels))
	for _, k := range p.LabelKeys() {
		amt := share(b.Pool, p.Labels[k])
		allocated = allocated.Add(amt)
		b.Labels = append(b.Labels, LabelShare{Label: k, Pct: p.Labels[k], Amount: amt})
	}
	b.Unallocated = b.Pool.Sub(allocated)
	return b, nil
}

// share is pct/100 * amount. Shift keeps the arithmetic exact.
func share(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct.Shift(-2))
}

// Label returns the named label share, if present.
func (b Breakdown) Label(key string) (LabelShare, bool) {
	for _, l := range b.Labels {
		if l.Label == key {
			return l, true
		}
	}
	return LabelShare{}, false
}
