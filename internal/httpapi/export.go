package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"goldpos/backend/internal/rollup"
)

const rollupSheet = "Rollup"

var rollupHeadings = []string{
	"key",
	"transactions",
	"physical_count",
	"release_count",
	"takeover_count",
	"gold_bought_g",
	"gold_taken_over_g",
	"profit_gold_physical_g",
	"profit_gold_commission_g",
	"profit_gold_takeover_g",
	"profit_gold_total_g",
	"commission",
	"takeover_profit",
	"cash_paid",
	"expenses",
}

// rollupRow keeps weights at 4dp and money at 2dp.
func rollupRow(b rollup.Bucket) []exportCell {
	return []exportCell{
		cellText(b.Key),
		cellCount(b.TransactionCount),
		cellCount(b.PhysicalCount),
		cellCount(b.ReleaseCount),
		cellCount(b.TakeOverCount),
		cellGrams(b.GoldBought),
		cellGrams(b.GoldTakenOver),
		cellGrams(b.ProfitGold.Physical),
		cellGrams(b.ProfitGold.Commission),
		cellGrams(b.ProfitGold.TakeOver),
		cellGrams(b.ProfitGold.Total()),
		cellMoney(b.Commission),
		cellMoney(b.TakeOverProfit),
		cellMoney(b.CashPaid),
		cellMoney(b.Expenses),
	}
}

type exportCell struct {
	text   string
	number *decimal.Decimal
}

func cellText(s string) exportCell {
	return exportCell{text: s}
}

func cellCount(n int) exportCell {
	v := decimal.NewFromInt(int64(n))
	return exportCell{text: strconv.Itoa(n), number: &v}
}

func cellGrams(d decimal.Decimal) exportCell {
	v := d.Round(4)
	return exportCell{text: v.StringFixed(4), number: &v}
}

func cellMoney(d decimal.Decimal) exportCell {
	v := d.Round(2)
	return exportCell{text: v.StringFixed(2), number: &v}
}

func rollupToCSV(buckets []rollup.Bucket) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rollupHeadings); err != nil {
		return nil, err
	}
	for _, b := range buckets {
		cells := rollupRow(b)
		record := make([]string, 0, len(cells))
		for _, c := range cells {
			record = append(record, c.text)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rollupToXLSX(buckets []rollup.Bucket) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", rollupSheet); err != nil {
		return nil, err
	}
	for i, h := range rollupHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(rollupSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for rowNo, b := range buckets {
		for i, c := range rollupRow(b) {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo+2)
			if err != nil {
				return nil, err
			}
			var value any = c.text
			if c.number != nil {
				value = c.number.InexactFloat64()
			}
			if err := f.SetCellValue(rollupSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
