// Package calc holds the margin formulas for renewal (release) and takeover
// transactions. Results are computed once from the stored inputs and never
// re-derived from later rates.
package calc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPercentage = errors.New("invalid commission percentage")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// CommissionTiers are the only percentages a release may charge.
var CommissionTiers = []int{2, 3, 4, 5}

var hundred = decimal.NewFromInt(100)

func validTier(percent int) bool {
	for _, tier := range CommissionTiers {
		if tier == percent {
			return true
		}
	}
	return false
}

// Commission returns percent/100 * renewalAmount rounded to 2dp.
func Commission(percent int, renewalAmount decimal.Decimal) (decimal.Decimal, error) {
	if !validTier(percent) {
		return decimal.Zero, fmt.Errorf("%w: %d not in %v", ErrInvalidPercentage, percent, CommissionTiers)
	}
	if !renewalAmount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: renewal amount must be greater than zero", ErrInvalidAmount)
	}
	return decimal.NewFromInt(int64(percent)).Div(hundred).Mul(renewalAmount).Round(2), nil
}

type ProfitLoss struct {
	// Signed is kept on the transaction record.
	Signed decimal.Decimal `json:"signed"`
	// Reportable is the non-negative part counted toward profit.
	Reportable decimal.Decimal `json:"reportable"`
}

// TakeOverProfitLoss returns takeoverAmount - marketValueAtPurchase.
func TakeOverProfitLoss(takeoverAmount decimal.Decimal, marketValue decimal.Decimal) (ProfitLoss, error) {
	if !takeoverAmount.IsPositive() {
		return ProfitLoss{}, fmt.Errorf("%w: takeover amount must be greater than zero", ErrInvalidAmount)
	}
	if marketValue.IsNegative() {
		return ProfitLoss{}, fmt.Errorf("%w: market value must not be negative", ErrInvalidAmount)
	}
	signed := takeoverAmount.Sub(marketValue).Round(2)
	return ProfitLoss{Signed: signed, Reportable: ReportableProfit(signed)}, nil
}

// ReportableProfit clamps a signed profit/loss at zero.
func ReportableProfit(signed decimal.Decimal) decimal.Decimal {
	if signed.IsNegative() {
		return decimal.Zero
	}
	return signed
}
