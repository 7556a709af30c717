package split_test

import (
	"testing"

	"royalty-admin/internal/split"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(t, want).Equal(got), "want %s, got %s", want, got)
}

func TestCalculateDefaults(t *testing.T) {
	b, err := split.Calculate(dec(t, "8547293.50"), split.DefaultPercentages())
	require.NoError(t, err)

	assertDecimal(t, "1282094.025", b.DistributionPartner)
	assertDecimal(t, "854729.35", b.CompanyAdmin)
	assertDecimal(t, "170945.87", b.SuperAdminReserve)
	assertDecimal(t, "85472.935", b.PlatformMaintenance)
	assertDecimal(t, "6154051.32", b.Pool)

	major, ok := b.Label("major-label")
	require.True(t, ok)
	assertDecimal(t, "1538512.83", major.Amount)

	// Labels only add to 95, so 5% of the pool is left over.
	assertDecimal(t, "307702.566", b.Unallocated)
	assert.Len(t, b.Labels, 5)
	assert.Equal(t, "distribution-partners", b.Labels[0].Label)
}

func TestCalculateIsLinear(t *testing.T) {
	p := split.DefaultPercentages()
	gross := dec(t, "12345.67")

	one, err := split.Calculate(gross, p)
	require.NoError(t, err)
	two, err := split.Calculate(gross.Mul(decimal.NewFromInt(2)), p)
	require.NoError(t, err)

	double := func(d decimal.Decimal) decimal.Decimal { return d.Mul(decimal.NewFromInt(2)) }
	assert.True(t, double(one.DistributionPartner).Equal(two.DistributionPartner))
	assert.True(t, double(one.CompanyAdmin).Equal(two.CompanyAdmin))
	assert.True(t, double(one.SuperAdminReserve).Equal(two.SuperAdminReserve))
	assert.True(t, double(one.PlatformMaintenance).Equal(two.PlatformMaintenance))
	assert.True(t, double(one.Pool).Equal(two.Pool))
	assert.True(t, double(one.Unallocated).Equal(two.Unallocated))
	for i := range one.Labels {
		assert.True(t, double(one.Labels[i].Amount).Equal(two.Labels[i].Amount), one.Labels[i].Label)
	}
}

func TestCalculateStageIsPctOfGross(t *testing.T) {
	for _, pct := range []string{"0", "0.5", "15", "33.3333", "100"} {
		t.Run(pct, func(t *testing.T) {
			p := split.Percentages{DistributionPartner: dec(t, pct)}
			gross := dec(t, "1000.10")
			b, err := split.Calculate(gross, p)
			require.NoError(t, err)
			want := dec(t, pct).Div(decimal.NewFromInt(100)).Mul(gross)
			assert.True(t, want.Equal(b.DistributionPartner), "want %s got %s", want, b.DistributionPartner)
		})
	}
}

func TestCalculateDeficit(t *testing.T) {
	p := split.Percentages{
		DistributionPartner: decimal.NewFromInt(60),
		CompanyAdmin:        decimal.NewFromInt(50),
		Labels:              map[string]decimal.Decimal{"a": decimal.NewFromInt(100)},
	}
	b, err := split.Calculate(decimal.NewFromInt(1000), p)
	require.NoError(t, err)
	assertDecimal(t, "-100", b.Pool)
	assertDecimal(t, "0", b.Unallocated)

	warnings := split.Warnings(p)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "exceeds 100%")
}

func TestCalculateOverAllocatedLabels(t *testing.T) {
	p := split.Percentages{
		Labels: map[string]decimal.Decimal{"a": decimal.NewFromInt(70), "b": decimal.NewFromInt(50)},
	}
	b, err := split.Calculate(decimal.NewFromInt(200), p)
	require.NoError(t, err)
	assertDecimal(t, "-40", b.Unallocated)
	assert.Len(t, split.Warnings(p), 1)
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	t.Run("Negative gross", func(t *testing.T) {
		_, err := split.Calculate(decimal.NewFromInt(-1), split.DefaultPercentages())
		assert.ErrorIs(t, err, split.ErrInvalidInput)
	})

	t.Run("Stage above 100", func(t *testing.T) {
		p := split.DefaultPercentages()
		p.CompanyAdmin = dec(t, "100.01")
		_, err := split.Calculate(decimal.NewFromInt(1), p)
		assert.ErrorIs(t, err, split.ErrInvalidInput)
	})

	t.Run("Negative label", func(t *testing.T) {
		p := split.DefaultPercentages()
		p.Labels["major-label"] = decimal.NewFromInt(-5)
		_, err := split.Calculate(decimal.NewFromInt(1), p)
		assert.ErrorIs(t, err, split.ErrInvalidInput)
	})

	t.Run("Empty label key", func(t *testing.T) {
		p := split.Percentages{Labels: map[string]decimal.Decimal{"": decimal.NewFromInt(5)}}
		assert.ErrorIs(t, p.Validate(), split.ErrInvalidInput)
	})
}

func TestWarnings(t *testing.T) {
	assert.Len(t, split.Warnings(split.DefaultPercentages()), 1)

	balanced := split.Percentages{
		DistributionPartner: decimal.NewFromInt(20),
		Labels:              map[string]decimal.Decimal{"a": decimal.NewFromInt(60), "b": decimal.NewFromInt(40)},
	}
	assert.Empty(t, split.Warnings(balanced))
	assert.Empty(t, split.Warnings(split.Percentages{}))
}

func TestZeroGross(t *testing.T) {
	b, err := split.Calculate(decimal.Zero, split.DefaultPercentages())
	require.NoError(t, err)
	assert.True(t, b.Pool.IsZero())
	assert.True(t, b.Unallocated.IsZero())
}
