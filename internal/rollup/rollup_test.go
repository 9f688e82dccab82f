package rollup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldpos/backend/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rates() domain.RateTable {
	return domain.RateTable{
		domain.Purity24K: d("7200"),
		domain.Purity22K: d("6000"),
		domain.Purity20K: d("5500"),
		domain.Purity18K: d("4900"),
	}
}

func physical(at time.Time, net string, rate string, total string) domain.Invoice {
	return domain.Invoice{
		InvoiceNo: "INV-P",
		Kind:      domain.InvoiceKindPhysical,
		CreatedAt: at,
		Physical: &domain.PhysicalPayload{
			DeductionPerGram: d("400"),
			TotalAmount:      d(total),
			Items:            []domain.LineItem{{NetWeight: d(net), RateAtCalculation: d(rate)}},
		},
	}
}

func release(at time.Time, renewal string, commission string) domain.Invoice {
	return domain.Invoice{
		Kind:      domain.InvoiceKindRelease,
		CreatedAt: at,
		Release:   &domain.ReleasePayload{RenewalAmount: d(renewal), CommissionAmount: d(commission)},
	}
}

func takeover(at time.Time, amount string, profit string) domain.Invoice {
	return domain.Invoice{
		Kind:      domain.InvoiceKindTakeOver,
		CreatedAt: at,
		TakeOver: &domain.TakeOverPayload{
			Gold:           domain.GoldDetail{NetWeight: d("10")},
			TakeoverAmount: d(amount),
			ProfitLoss:     d(profit),
		},
	}
}

func sampleLog() []domain.Invoice {
	utc := time.UTC
	return []domain.Invoice{
		physical(time.Date(2024, 3, 9, 10, 0, 0, 0, utc), "22", "6000", "123200"),  // Saturday
		physical(time.Date(2024, 3, 10, 10, 0, 0, 0, utc), "10", "5000", "46000"),  // Sunday
		release(time.Date(2024, 3, 10, 12, 0, 0, 0, utc), "100000", "3000"),        // Sunday
		takeover(time.Date(2024, 3, 31, 12, 0, 0, 0, utc), "70000", "5900"),        // Sunday
		takeover(time.Date(2024, 4, 1, 12, 0, 0, 0, utc), "50000", "-1000"),        // Monday
		{Kind: domain.InvoiceKindRelease, CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, utc)}, // no payload
	}
}

func TestRollupBucketsByDayWeekMonth(t *testing.T) {
	res := Rollup(sampleLog(), nil, rates(), Options{Location: time.UTC})

	assert.True(t, res.AverageRate.Equal(d("5900")))

	require.Len(t, res.Daily, 4)
	assert.Len(t, res.Weekly, 3)
	assert.Len(t, res.Monthly, 2)

	sat := res.Bucket(Weekly, "2024-03-03")
	assert.Equal(t, 1, sat.TransactionCount)
	sun := res.Bucket(Weekly, "2024-03-10")
	assert.Equal(t, 2, sun.TransactionCount)
	assert.Equal(t, 1, sun.ReleaseCount)

	march := res.Bucket(Monthly, "2024-03")
	assert.Equal(t, 4, march.TransactionCount)
	assert.True(t, march.GoldBought.Equal(d("32")))
	assert.True(t, march.CashPaid.Equal(d("339200")))
}

func TestRollupProfitGoldConversion(t *testing.T) {
	res := Rollup(sampleLog(), nil, rates(), Options{Location: time.UTC})

	day := res.Bucket(Daily, "2024-03-09")
	// 400 / 6000 * 22
	assert.Equal(t, "1.4667", day.ProfitGold.Physical.StringFixed(4))

	sunday := res.Bucket(Daily, "2024-03-10")
	// 400 / 5000 * 10 at the item's own rate
	assert.Equal(t, "0.8000", sunday.ProfitGold.Physical.StringFixed(4))
	// 3000 / 5900 at today's average
	assert.Equal(t, "0.5085", sunday.ProfitGold.Commission.StringFixed(4))

	assert.True(t, res.Bucket(Daily, "2024-03-31").ProfitGold.TakeOver.Equal(d("1")))
	loss := res.Bucket(Daily, "2024-04-01")
	assert.True(t, loss.ProfitGold.TakeOver.IsZero())
	assert.True(t, loss.TakeOverProfit.IsZero())
	assert.True(t, loss.GoldTakenOver.Equal(d("10")))
}

func TestRollupIsIdempotent(t *testing.T) {
	log := sampleLog()
	first := Rollup(log, nil, rates(), Options{Location: time.UTC})
	second := Rollup(log, nil, rates(), Options{Location: time.UTC})
	assert.Equal(t, first, second)
}

func TestRollupAllTimeEqualsSumOfBuckets(t *testing.T) {
	log := sampleLog()
	expenses := []domain.CashEntry{
		{Type: domain.CashEntryExpense, Amount: d("120"), CreatedAt: time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC)},
		{Type: domain.CashEntryBilling, Amount: d("999"), CreatedAt: time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC)},
	}
	res := Rollup(log, expenses, rates(), Options{Location: time.UTC})

	for _, g := range []Granularity{Daily, Weekly, Monthly} {
		gold := decimal.Zero
		profit := decimal.Zero
		paid := decimal.Zero
		count := 0
		for _, b := range res.Buckets(g) {
			gold = gold.Add(b.GoldBought)
			profit = profit.Add(b.ProfitGold.Total())
			paid = paid.Add(b.CashPaid)
			count += b.TransactionCount
		}
		assert.True(t, res.AllTime.GoldBought.Equal(gold), "%s gold", g)
		assert.True(t, res.AllTime.ProfitGold.Total().Equal(profit), "%s profit", g)
		assert.True(t, res.AllTime.CashPaid.Equal(paid), "%s cash", g)
		assert.Equal(t, res.AllTime.TransactionCount, count, "%s count", g)
	}

	direct := decimal.Zero
	for _, inv := range log {
		if inv.Physical == nil {
			continue
		}
		for _, item := range inv.Physical.Items {
			direct = direct.Add(item.NetWeight)
		}
	}
	assert.True(t, res.AllTime.GoldBought.Equal(direct))
	assert.True(t, res.AllTime.Expenses.Equal(d("120")))
	assert.Equal(t, 5, res.AllTime.TransactionCount)
}

func TestRollupUsesShopLocationForKeys(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2024-03-09 20:00 UTC is 2024-03-10 01:30 IST, a Sunday.
	log := []domain.Invoice{physical(time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC), "1", "6000", "5600")}
	res := Rollup(log, nil, rates(), Options{Location: ist})

	_, ok := res.Daily["2024-03-10"]
	assert.True(t, ok)
	_, ok = res.Weekly["2024-03-10"]
	assert.True(t, ok)
}

func TestRollupFallsBackWhenRateTableEmpty(t *testing.T) {
	res := Rollup([]domain.Invoice{release(time.Now(), "1000", "50")}, nil, domain.RateTable{}, Options{FallbackRate: d("5000")})
	assert.True(t, res.AverageRate.Equal(d("5000")))
	assert.True(t, res.AllTime.ProfitGold.Commission.Equal(d("0.01")))
}

func TestBucketSelectors(t *testing.T) {
	res := Rollup(sampleLog(), nil, rates(), Options{Location: time.UTC})

	empty := res.Bucket(Daily, "1999-01-01")
	assert.Equal(t, "1999-01-01", empty.Key)
	assert.Zero(t, empty.TransactionCount)

	assert.Equal(t, res.AllTime, res.Bucket(AllTime, "ignored"))

	days := res.Buckets(Daily)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-03-09", days[0].Key)
	assert.Equal(t, "2024-04-01", days[3].Key)

	g, err := ParseGranularity("weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, g)
	_, err = ParseGranularity("yearly")
	assert.Error(t, err)

	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-10", CurrentKey(Weekly, now, time.UTC))
	assert.Equal(t, "2024-03", CurrentKey(Monthly, now, time.UTC))
	assert.Equal(t, "2024-03-13", CurrentKey(Daily, now, time.UTC))
}
