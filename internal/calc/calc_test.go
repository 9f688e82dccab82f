package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommission(t *testing.T) {
	got, err := Commission(3, decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "3000.00", got.StringFixed(2))

	for _, tier := range CommissionTiers {
		_, err := Commission(tier, decimal.NewFromInt(1))
		assert.NoError(t, err, "tier %d", tier)
	}
}

func TestCommissionRoundsToCents(t *testing.T) {
	got, err := Commission(3, decimal.RequireFromString("12345.67"))
	require.NoError(t, err)
	// 370.3701 -> 370.37
	assert.Equal(t, "370.37", got.StringFixed(2))
}

func TestCommissionRejectsUnknownTier(t *testing.T) {
	for _, pct := range []int{0, 1, 6, 10, -3} {
		_, err := Commission(pct, decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, ErrInvalidPercentage, "pct %d", pct)
	}
}

func TestCommissionRejectsNonPositiveAmount(t *testing.T) {
	_, err := Commission(2, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTakeOverProfitLoss(t *testing.T) {
	profit, err := TakeOverProfitLoss(decimal.NewFromInt(120000), decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "20000", profit.Signed.String())
	assert.Equal(t, "20000", profit.Reportable.String())

	loss, err := TakeOverProfitLoss(decimal.NewFromInt(90000), decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Equal(t, "-10000", loss.Signed.String())
	assert.True(t, loss.Reportable.IsZero())
}

func TestTakeOverProfitLossValidation(t *testing.T) {
	_, err := TakeOverProfitLoss(decimal.Zero, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = TakeOverProfitLoss(decimal.NewFromInt(10), decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
