package valuation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldpos/backend/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func standardRates() domain.RateTable {
	return domain.RateTable{
		domain.Purity24K: d("7200"),
		domain.Purity22K: d("6000"),
		domain.Purity20K: d("5500"),
		domain.Purity18K: d("4900"),
	}
}

func TestComputeItemWorkedExample(t *testing.T) {
	v := New(Config{})

	res, err := v.ComputeItem(domain.LineItem{
		KDMType:     domain.KDMTypeKDM,
		GrossWeight: d("22.300"),
		StoneWeight: d("0.300"),
		Purity:      domain.Purity22K,
	}, standardRates())
	require.NoError(t, err)

	assert.True(t, res.NetWeight.Equal(d("22")), "net %s", res.NetWeight)
	assert.True(t, res.GrossAmount.Equal(d("132000")), "gross %s", res.GrossAmount)
	assert.True(t, res.Deduction.Equal(d("8800")), "deduction %s", res.Deduction)
	assert.Equal(t, "123200.00", res.FinalPayout.StringFixed(2))
	assert.Nil(t, res.Warning)
}

func TestComputeItemRejectsBadWeights(t *testing.T) {
	v := New(Config{})
	cases := []struct {
		name  string
		gross string
		stone string
	}{
		{"zero gross", "0", "0"},
		{"negative gross", "-1", "0"},
		{"stone equals gross", "5", "5"},
		{"stone above gross", "5", "6"},
		{"negative stone", "5", "-0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ComputeItem(domain.LineItem{
				KDMType:     domain.KDMTypeKDM,
				GrossWeight: d(tc.gross),
				StoneWeight: d(tc.stone),
				Purity:      domain.Purity22K,
			}, standardRates())
			assert.ErrorIs(t, err, ErrInvalidWeight)
		})
	}
}

func TestComputeItemRejectsUnknownPurity(t *testing.T) {
	v := New(Config{})
	_, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: "14K"}, standardRates())
	assert.ErrorIs(t, err, ErrInvalidPurity)
}

func TestComputeItemRejectsUnknownKDMType(t *testing.T) {
	v := New(Config{})
	for _, kdm := range []domain.KDMType{"", "bogus", "kdm"} {
		_, err := v.ComputeItem(domain.LineItem{KDMType: kdm, GrossWeight: d("10"), Purity: domain.Purity22K}, standardRates())
		assert.ErrorIs(t, err, ErrInvalidKDMType, "kdm %q", kdm)
	}

	_, err := v.Valuate([]domain.LineItem{{KDMType: "bogus", GrossWeight: d("10"), Purity: domain.Purity22K}}, standardRates())
	assert.ErrorIs(t, err, ErrInvalidKDMType)

	_, _, _, err = v.PriceGold(domain.GoldDetail{KDMType: "bogus", GrossWeight: d("10"), Purity: domain.Purity22K}, standardRates())
	assert.ErrorIs(t, err, ErrInvalidKDMType)
}

func TestComputeItemFallbackRateIsSurfaced(t *testing.T) {
	v := New(Config{})
	rates := domain.RateTable{domain.Purity24K: d("7200")}

	res, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("10"), Purity: domain.Purity18K}, rates)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, WarningMissingRate, res.Warning.Code)
	assert.True(t, res.Rate.Equal(DefaultFallbackRate))
	assert.True(t, errors.Is(res.Warning.Err(), ErrMissingRate))
	// 10g * (5000 - 400)
	assert.Equal(t, "46000.00", res.FinalPayout.StringFixed(2))
}

func TestComputeItemZeroRateUsesFallback(t *testing.T) {
	v := New(Config{FallbackRate: d("4500")})
	rates := domain.RateTable{domain.Purity22K: decimal.Zero}

	res, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: domain.Purity22K}, rates)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.True(t, res.Rate.Equal(d("4500")))
}

func TestComputeItemPayoutNeverNegative(t *testing.T) {
	v := New(Config{DeductionPerGram: d("9000")})
	res, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("2"), Purity: domain.Purity22K}, standardRates())
	require.NoError(t, err)
	assert.True(t, res.FinalPayout.IsZero())
}

func TestComputeItemRoundsHalfUp(t *testing.T) {
	v := New(Config{DeductionPerGram: d("0.001")})
	// net 0.005 * 1 = 0.005 gross, deduction 0.000005 -> 0.004995 -> 0.00
	rates := domain.RateTable{domain.Purity24K: d("1")}
	res, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("0.005"), Purity: domain.Purity24K}, rates)
	require.NoError(t, err)
	assert.Equal(t, "0.00", res.FinalPayout.StringFixed(2))

	v = New(Config{DeductionPerGram: d("0.5")})
	// net 1 * 6000.505 - 0.5 = 6000.005 -> 6000.01
	rates = domain.RateTable{domain.Purity24K: d("6000.505")}
	res, err = v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: domain.Purity24K}, rates)
	require.NoError(t, err)
	assert.Equal(t, "6000.01", res.FinalPayout.StringFixed(2))
}

func TestFinalPayoutFormulaHoldsAcrossInputs(t *testing.T) {
	v := New(Config{})
	rates := standardRates()
	weights := []struct{ gross, stone string }{
		{"1.234", "0.010"}, {"10", "0"}, {"0.5", "0.1"}, {"99.999", "9.999"}, {"3.333", "0.333"},
	}
	for _, w := range weights {
		for _, purity := range domain.StandardPurities {
			res, err := v.ComputeItem(domain.LineItem{KDMType: domain.KDMTypeKDM, GrossWeight: d(w.gross), StoneWeight: d(w.stone), Purity: purity}, rates)
			require.NoError(t, err)

			net := d(w.gross).Sub(d(w.stone))
			expected := net.Mul(rates[purity]).Sub(net.Mul(DefaultDeductionPerGram))
			if expected.IsNegative() {
				expected = decimal.Zero
			}
			assert.True(t, res.FinalPayout.Equal(expected.Round(2)), "%s/%s %s: got %s want %s", w.gross, w.stone, purity, res.FinalPayout, expected.Round(2))
		}
	}
}

func TestValuateUsesOverrideForTotalAndKeepsComputed(t *testing.T) {
	v := New(Config{})
	items := []domain.LineItem{
		{OrnamentType: "chain", KDMType: domain.KDMTypeKDM, GrossWeight: d("22.3"), StoneWeight: d("0.3"), Purity: domain.Purity22K},
		{OrnamentType: "ring", KDMType: domain.KDMTypeNonKDM, GrossWeight: d("5"), Purity: domain.Purity24K, OverrideAmount: ptr(d("30000"))},
	}

	res, err := v.Valuate(items, standardRates())
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "123200.00", res.Items[0].ComputedAmount.StringFixed(2))
	// 5 * (7200 - 400) = 34000, overridden to 30000
	assert.Equal(t, "34000.00", res.Items[1].ComputedAmount.StringFixed(2))
	require.NotNil(t, res.Items[1].OverrideAmount)
	assert.Equal(t, "30000.00", res.Items[1].OverrideAmount.StringFixed(2))
	assert.Equal(t, "153200.00", res.TotalAmount.StringFixed(2))
	assert.True(t, res.Items[1].RateAtCalculation.Equal(d("7200")))

	// input slice untouched
	assert.True(t, items[0].ComputedAmount.IsZero())
}

func TestComputeInvoiceIsOrderIndependent(t *testing.T) {
	v := New(Config{})
	items := []domain.LineItem{
		{KDMType: domain.KDMTypeKDM, GrossWeight: d("1.111"), Purity: domain.Purity18K},
		{KDMType: domain.KDMTypeKDM, GrossWeight: d("2.222"), Purity: domain.Purity20K, OverrideAmount: ptr(d("10000.555"))},
		{KDMType: domain.KDMTypeKDM, GrossWeight: d("3.333"), StoneWeight: d("0.001"), Purity: domain.Purity22K},
	}
	forward, err := v.Valuate(items, standardRates())
	require.NoError(t, err)

	reversed := []domain.LineItem{items[2], items[1], items[0]}
	backward, err := v.Valuate(reversed, standardRates())
	require.NoError(t, err)

	assert.True(t, forward.TotalAmount.Equal(backward.TotalAmount))

	sum := decimal.Zero
	for _, item := range forward.Items {
		sum = sum.Add(item.EffectiveAmount())
	}
	assert.True(t, forward.TotalAmount.Equal(sum.Round(2)))
}

func TestValuateRejectsNegativeOverrideAndEmptyInvoice(t *testing.T) {
	v := New(Config{})

	_, err := v.Valuate(nil, standardRates())
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, err = v.Valuate([]domain.LineItem{{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: domain.Purity22K, OverrideAmount: ptr(d("-1"))}}, standardRates())
	assert.ErrorIs(t, err, ErrInvalidOverride)
}

func TestValuateCollectsWarningsWithItemIndex(t *testing.T) {
	v := New(Config{})
	rates := domain.RateTable{domain.Purity22K: d("6000")}

	res, err := v.Valuate([]domain.LineItem{
		{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: domain.Purity22K},
		{KDMType: domain.KDMTypeKDM, GrossWeight: d("1"), Purity: domain.Purity18K},
	}, rates)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, res.Warnings[0].ItemIndex)
	assert.Equal(t, domain.Purity18K, res.Warnings[0].Purity)
}

func TestAverageRate(t *testing.T) {
	assert.True(t, AverageRate(standardRates(), DefaultFallbackRate).Equal(d("5900")))

	partial := domain.RateTable{domain.Purity24K: d("7000"), domain.Purity22K: decimal.Zero, domain.Purity18K: d("5000")}
	assert.True(t, AverageRate(partial, DefaultFallbackRate).Equal(d("6000")))

	assert.True(t, AverageRate(domain.RateTable{}, d("5100")).Equal(d("5100")))
}

func TestPriceGold(t *testing.T) {
	v := New(Config{})
	gold, value, warning, err := v.PriceGold(domain.GoldDetail{KDMType: domain.KDMTypeKDM, GrossWeight: d("20"), StoneWeight: d("1"), Purity: domain.Purity22K}, standardRates())
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.True(t, gold.NetWeight.Equal(d("19")))
	assert.True(t, gold.Rate.Equal(d("6000")))
	assert.Equal(t, "114000.00", value.StringFixed(2))
}
