// Package rollup aggregates the full invoice history into daily, weekly,
// monthly and all-time buckets. Every call recomputes from its inputs.
package rollup

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"goldpos/backend/internal/calc"
	"goldpos/backend/internal/domain"
	"goldpos/backend/internal/valuation"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	AllTime Granularity = "all"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	AllTimeKey  = "all"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Daily, Weekly, Monthly, AllTime:
		return g, nil
	case "":
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}

// ProfitGold is profit expressed in grams, split by source.
type ProfitGold struct {
	Physical   decimal.Decimal `json:"physical"`
	Commission decimal.Decimal `json:"commission"`
	TakeOver   decimal.Decimal `json:"takeover"`
}

func (p ProfitGold) Total() decimal.Decimal {
	return p.Physical.Add(p.Commission).Add(p.TakeOver)
}

func (p ProfitGold) add(o ProfitGold) ProfitGold {
	return ProfitGold{
		Physical:   p.Physical.Add(o.Physical),
		Commission: p.Commission.Add(o.Commission),
		TakeOver:   p.TakeOver.Add(o.TakeOver),
	}
}

type Bucket struct {
	Key              string          `json:"key"`
	GoldBought       decimal.Decimal `json:"gold_bought"`
	GoldTakenOver    decimal.Decimal `json:"gold_taken_over"`
	ProfitGold       ProfitGold      `json:"profit_gold"`
	Commission       decimal.Decimal `json:"commission"`
	TakeOverProfit   decimal.Decimal `json:"takeover_profit"`
	CashPaid         decimal.Decimal `json:"cash_paid"`
	Expenses         decimal.Decimal `json:"expenses"`
	TransactionCount int             `json:"transaction_count"`
	PhysicalCount    int             `json:"physical_count"`
	ReleaseCount     int             `json:"release_count"`
	TakeOverCount    int             `json:"takeover_count"`
}

func newBucket(key string) *Bucket {
	return &Bucket{
		Key:            key,
		GoldBought:     decimal.Zero,
		GoldTakenOver:  decimal.Zero,
		ProfitGold:     ProfitGold{Physical: decimal.Zero, Commission: decimal.Zero, TakeOver: decimal.Zero},
		Commission:     decimal.Zero,
		TakeOverProfit: decimal.Zero,
		CashPaid:       decimal.Zero,
		Expenses:       decimal.Zero,
	}
}

func (b *Bucket) add(c Bucket) {
	b.GoldBought = b.GoldBought.Add(c.GoldBought)
	b.GoldTakenOver = b.GoldTakenOver.Add(c.GoldTakenOver)
	b.ProfitGold = b.ProfitGold.add(c.ProfitGold)
	b.Commission = b.Commission.Add(c.Commission)
	b.TakeOverProfit = b.TakeOverProfit.Add(c.TakeOverProfit)
	b.CashPaid = b.CashPaid.Add(c.CashPaid)
	b.Expenses = b.Expenses.Add(c.Expenses)
	b.TransactionCount += c.TransactionCount
	b.PhysicalCount += c.PhysicalCount
	b.ReleaseCount += c.ReleaseCount
	b.TakeOverCount += c.TakeOverCount
}

type Options struct {
	// DeductionPerGram is used for physical invoices that did not record one.
	DeductionPerGram decimal.Decimal
	FallbackRate     decimal.Decimal
	Location         *time.Location
}

type Result struct {
	AverageRate decimal.Decimal    `json:"average_rate"`
	Daily       map[string]*Bucket `json:"daily"`
	Weekly      map[string]*Bucket `json:"weekly"`
	Monthly     map[string]*Bucket `json:"monthly"`
	AllTime     Bucket             `json:"all_time"`
}

// DayKey, WeekKey and MonthKey use the calendar date in loc. Weeks start on
// Sunday.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

func WeekKey(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -int(local.Weekday()))
	return start.Format(DayLayout)
}

func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(MonthLayout)
}

// Rollup aggregates invoices and expense entries in a single pass. Physical
// profit converts the deduction at the rate recorded on each item; release
// commission and takeover profit convert at today's average rate.
func Rollup(invoices []domain.Invoice, entries []domain.CashEntry, rates domain.RateTable, opts Options) Result {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	fallback := opts.FallbackRate
	if !fallback.IsPositive() {
		fallback = valuation.DefaultFallbackRate
	}
	deduction := opts.DeductionPerGram
	if !deduction.IsPositive() {
		deduction = valuation.DefaultDeductionPerGram
	}
	avg := valuation.AverageRate(rates, fallback)

	res := Result{
		AverageRate: avg,
		Daily:       make(map[string]*Bucket),
		Weekly:      make(map[string]*Bucket),
		Monthly:     make(map[string]*Bucket),
		AllTime:     *newBucket(AllTimeKey),
	}

	emit := func(at time.Time, contribution Bucket) {
		for _, target := range []struct {
			m   map[string]*Bucket
			key string
		}{
			{res.Daily, DayKey(at, loc)},
			{res.Weekly, WeekKey(at, loc)},
			{res.Monthly, MonthKey(at, loc)},
		} {
			b, ok := target.m[target.key]
			if !ok {
				b = newBucket(target.key)
				target.m[target.key] = b
			}
			b.add(contribution)
		}
		res.AllTime.add(contribution)
	}

	for _, inv := range invoices {
		c, ok := contribute(inv, avg, deduction)
		if !ok {
			continue
		}
		emit(inv.CreatedAt, c)
	}
	for _, e := range entries {
		if e.Type != domain.CashEntryExpense || !e.Amount.IsPositive() {
			continue
		}
		c := *newBucket("")
		c.Expenses = e.Amount
		emit(e.CreatedAt, c)
	}
	return res
}

func contribute(inv domain.Invoice, avg decimal.Decimal, defaultDeduction decimal.Decimal) (Bucket, bool) {
	c := *newBucket("")
	c.TransactionCount = 1

	switch inv.Kind {
	case domain.InvoiceKindPhysical:
		if inv.Physical == nil {
			return Bucket{}, false
		}
		deduction := inv.Physical.DeductionPerGram
		if !deduction.IsPositive() {
			deduction = defaultDeduction
		}
		for _, item := range inv.Physical.Items {
			c.GoldBought = c.GoldBought.Add(item.NetWeight)
			if item.RateAtCalculation.IsPositive() {
				c.ProfitGold.Physical = c.ProfitGold.Physical.Add(deduction.Div(item.RateAtCalculation).Mul(item.NetWeight))
			}
		}
		c.CashPaid = inv.Physical.TotalAmount
		c.PhysicalCount = 1
	case domain.InvoiceKindRelease:
		if inv.Release == nil {
			return Bucket{}, false
		}
		c.Commission = inv.Release.CommissionAmount
		c.ProfitGold.Commission = inv.Release.CommissionAmount.Div(avg)
		c.CashPaid = inv.Release.RenewalAmount
		c.ReleaseCount = 1
	case domain.InvoiceKindTakeOver:
		if inv.TakeOver == nil {
			return Bucket{}, false
		}
		profit := calc.ReportableProfit(inv.TakeOver.ProfitLoss)
		c.GoldTakenOver = inv.TakeOver.Gold.NetWeight
		c.TakeOverProfit = profit
		c.ProfitGold.TakeOver = profit.Div(avg)
		c.CashPaid = inv.TakeOver.TakeoverAmount
		c.TakeOverCount = 1
	default:
		return Bucket{}, false
	}
	return c, true
}

// Bucket looks up one precomputed bucket. A missing key yields an empty
// bucket with that key.
func (r Result) Bucket(g Granularity, key string) Bucket {
	var m map[string]*Bucket
	switch g {
	case Daily:
		m = r.Daily
	case Weekly:
		m = r.Weekly
	case Monthly:
		m = r.Monthly
	default:
		return r.AllTime
	}
	if b, ok := m[key]; ok {
		return *b
	}
	return *newBucket(key)
}

// Buckets returns every bucket of a granularity ordered by key.
func (r Result) Buckets(g Granularity) []Bucket {
	var m map[string]*Bucket
	switch g {
	case Daily:
		m = r.Daily
	case Weekly:
		m = r.Weekly
	case Monthly:
		m = r.Monthly
	default:
		return []Bucket{r.AllTime}
	}
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CurrentKey is the bucket key containing now.
func CurrentKey(g Granularity, now time.Time, loc *time.Location) string {
	switch g {
	case Weekly:
		return WeekKey(now, loc)
	case Monthly:
		return MonthKey(now, loc)
	case AllTime:
		return AllTimeKey
	default:
		return DayKey(now, loc)
	}
}
