// Package valuation turns weighed gold items and a purity rate table into
// payouts.
package valuation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"goldpos/backend/internal/domain"
)

var (
	// DefaultDeductionPerGram is the shop margin taken off every net gram.
	DefaultDeductionPerGram = decimal.NewFromInt(400)
	// DefaultFallbackRate prices a purity missing from the rate table.
	DefaultFallbackRate = decimal.NewFromInt(5000)
)

var (
	ErrInvalidWeight   = errors.New("invalid weight")
	ErrInvalidPurity   = errors.New("invalid purity")
	ErrInvalidKDMType  = errors.New("invalid kdm type")
	ErrInvalidOverride = errors.New("invalid override amount")
	ErrMissingRate     = errors.New("missing rate")
)

const WarningMissingRate = "MissingRate"

// Warning reports a non-fatal condition the caller must show to the user.
type Warning struct {
	Code         string          `json:"code"`
	ItemIndex    int             `json:"item_index"`
	Purity       domain.Purity   `json:"purity"`
	FallbackRate decimal.Decimal `json:"fallback_rate"`
	Message      string          `json:"message"`
}

func (w Warning) Err() error {
	return fmt.Errorf("%w: %s", ErrMissingRate, w.Message)
}

type Config struct {
	DeductionPerGram decimal.Decimal
	FallbackRate     decimal.Decimal
}

type Valuator struct {
	deductionPerGram decimal.Decimal
	fallbackRate     decimal.Decimal
}

// New builds a valuator. Non-positive settings fall back to the defaults.
func New(cfg Config) *Valuator {
	v := &Valuator{
		deductionPerGram: cfg.DeductionPerGram,
		fallbackRate:     cfg.FallbackRate,
	}
	if !v.deductionPerGram.IsPositive() {
		v.deductionPerGram = DefaultDeductionPerGram
	}
	if !v.fallbackRate.IsPositive() {
		v.fallbackRate = DefaultFallbackRate
	}
	return v
}

func (v *Valuator) DeductionPerGram() decimal.Decimal {
	return v.deductionPerGram
}

func (v *Valuator) FallbackRate() decimal.Decimal {
	return v.fallbackRate
}

// Rate resolves the rate for a purity. The second result is true when the
// table had no positive rate and the fallback was used.
func (v *Valuator) Rate(rates domain.RateTable, purity domain.Purity) (decimal.Decimal, bool) {
	if rate, ok := rates[purity]; ok && rate.IsPositive() {
		return rate, false
	}
	return v.fallbackRate, true
}

// AverageRate is the mean of all positive rates in the table, or fallback
// when none is positive.
func AverageRate(rates domain.RateTable, fallback decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	count := int64(0)
	for _, rate := range rates {
		if rate.IsPositive() {
			sum = sum.Add(rate)
			count++
		}
	}
	if count == 0 {
		return fallback
	}
	return sum.Div(decimal.NewFromInt(count))
}

type ItemResult struct {
	NetWeight   decimal.Decimal `json:"net_weight"`
	Rate        decimal.Decimal `json:"rate"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Deduction   decimal.Decimal `json:"deduction"`
	FinalPayout decimal.Decimal `json:"final_payout"`
	Warning     *Warning        `json:"warning,omitempty"`
}

// NetWeight validates the weights and returns gross minus stone.
func NetWeight(gross decimal.Decimal, stone decimal.Decimal) (decimal.Decimal, error) {
	if !gross.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: gross weight must be greater than zero", ErrInvalidWeight)
	}
	if stone.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: stone weight must not be negative", ErrInvalidWeight)
	}
	net := gross.Sub(stone)
	if !net.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: net weight must be greater than zero", ErrInvalidWeight)
	}
	return net, nil
}

// ComputeItem prices one item:
// finalPayout = max(0, net*rate - net*deductionPerGram), rounded half-up to 2dp.
func (v *Valuator) ComputeItem(item domain.LineItem, rates domain.RateTable) (ItemResult, error) {
	if !item.Purity.Valid() {
		return ItemResult{}, fmt.Errorf("%w: %q", ErrInvalidPurity, item.Purity)
	}
	if !item.KDMType.Valid() {
		return ItemResult{}, fmt.Errorf("%w: %q", ErrInvalidKDMType, item.KDMType)
	}
	net, err := NetWeight(item.GrossWeight, item.StoneWeight)
	if err != nil {
		return ItemResult{}, err
	}

	rate, fallback := v.Rate(rates, item.Purity)
	gross := net.Mul(rate)
	deduction := net.Mul(v.deductionPerGram)
	payout := gross.Sub(deduction)
	if payout.IsNegative() {
		payout = decimal.Zero
	}

	result := ItemResult{
		NetWeight:   net,
		Rate:        rate,
		GrossAmount: RoundMoney(gross),
		Deduction:   RoundMoney(deduction),
		FinalPayout: RoundMoney(payout),
	}
	if fallback {
		result.Warning = &Warning{
			Code:         WarningMissingRate,
			Purity:       item.Purity,
			FallbackRate: rate,
			Message:      fmt.Sprintf("no rate for %s, using fallback %s/g", item.Purity, rate.String()),
		}
	}
	return result, nil
}

// ComputeInvoice sums each item's override-or-computed amount.
func ComputeInvoice(items []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.EffectiveAmount())
	}
	return RoundMoney(total)
}

type Result struct {
	Items       []domain.LineItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Warnings    []Warning         `json:"warnings"`
}

// Valuate computes every item and the invoice total. Input items are not
// modified; the returned items carry the computed fields.
func (v *Valuator) Valuate(items []domain.LineItem, rates domain.RateTable) (Result, error) {
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: at least one item is required", ErrInvalidWeight)
	}

	out := make([]domain.LineItem, 0, len(items))
	var warnings []Warning
	for i, item := range items {
		if item.OverrideAmount != nil && item.OverrideAmount.IsNegative() {
			return Result{}, fmt.Errorf("item %d: %w", i, ErrInvalidOverride)
		}
		res, err := v.ComputeItem(item, rates)
		if err != nil {
			return Result{}, fmt.Errorf("item %d: %w", i, err)
		}
		if res.Warning != nil {
			res.Warning.ItemIndex = i
			warnings = append(warnings, *res.Warning)
		}

		priced := item
		priced.NetWeight = res.NetWeight
		priced.RateAtCalculation = res.Rate
		priced.GrossAmount = res.GrossAmount
		priced.DeductionAmount = res.Deduction
		priced.ComputedAmount = res.FinalPayout
		if item.OverrideAmount != nil {
			override := RoundMoney(*item.OverrideAmount)
			priced.OverrideAmount = &override
		}
		out = append(out, priced)
	}

	return Result{
		Items:       out,
		TotalAmount: ComputeInvoice(out),
		Warnings:    warnings,
	}, nil
}

// PriceGold fills the derived fields of a single pledged item and returns
// its market value (net * rate) at the given table.
func (v *Valuator) PriceGold(gold domain.GoldDetail, rates domain.RateTable) (domain.GoldDetail, decimal.Decimal, *Warning, error) {
	if !gold.Purity.Valid() {
		return domain.GoldDetail{}, decimal.Zero, nil, fmt.Errorf("%w: %q", ErrInvalidPurity, gold.Purity)
	}
	if !gold.KDMType.Valid() {
		return domain.GoldDetail{}, decimal.Zero, nil, fmt.Errorf("%w: %q", ErrInvalidKDMType, gold.KDMType)
	}
	net, err := NetWeight(gold.GrossWeight, gold.StoneWeight)
	if err != nil {
		return domain.GoldDetail{}, decimal.Zero, nil, err
	}
	rate, fallback := v.Rate(rates, gold.Purity)
	gold.NetWeight = net
	gold.Rate = rate

	var warning *Warning
	if fallback {
		warning = &Warning{
			Code:         WarningMissingRate,
			Purity:       gold.Purity,
			FallbackRate: rate,
			Message:      fmt.Sprintf("no rate for %s, using fallback %s/g", gold.Purity, rate.String()),
		}
	}
	return gold, RoundMoney(net.Mul(rate)), warning, nil
}

// RoundMoney rounds half-up to 2 decimal places. Shopspring rounds half away
// from zero, which matches half-up for the non-negative amounts used here.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
