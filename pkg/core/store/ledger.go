package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finpulse/pkg/models"
)

// MonthSummary is the sales total of one calendar month.
type MonthSummary struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Total   float64 `json:"total"`
	Entries int     `json:"entries"`
}

// roundPaise rounds a stored amount to two places, half away from zero, the
// way the daily_sales NUMERIC(16, 2) column does.
func roundPaise(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// SumMonth folds the entries dated in year/month. Malformed dates are skipped.
func SumMonth(entries []models.DailySalesEntry, year int, month time.Month) float64 {
	total := decimal.Zero
	for _, e := range entries {
		day, err := e.Day()
		if err != nil || day.Year() != year || day.Month() != month {
			continue
		}
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}
	f, _ := total.Float64()
	return f
}

func SumAll(entries []models.DailySalesEntry) float64 {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}
	f, _ := total.Float64()
	return f
}

// SummarizeMonths groups the ledger by calendar month, oldest first.
func SummarizeMonths(entries []models.DailySalesEntry) []MonthSummary {
	type key struct{ y, m int }
	totals := map[key]decimal.Decimal{}
	counts := map[key]int{}
	var order []key

	for _, e := range entries {
		day, err := e.Day()
		if err != nil {
			continue
		}
		k := key{day.Year(), int(day.Month())}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] = totals[k].Add(decimal.NewFromFloat(e.Amount))
		counts[k]++
	}

	out := make([]MonthSummary, 0, len(order))
	for _, k := range order {
		f, _ := totals[k].Float64()
		out = append(out, MonthSummary{Year: k.y, Month: k.m, Total: f, Entries: counts[k]})
	}
	// ledgers come back in date order, so months are already ascending
	return out
}

// MonthlyTotal recomputes the month's sales from the ledger on every call.
func MonthlyTotal(ctx context.Context, s HistoryStore, userID string, year int, month time.Month) (float64, error) {
	entries, err := s.SalesEntries(ctx, userID)
	if err != nil {
		return 0, err
	}
	return SumMonth(entries, year, month), nil
}

func AllTimeTotal(ctx context.Context, s HistoryStore, userID string) (float64, error) {
	entries, err := s.SalesEntries(ctx, userID)
	if err != nil {
		return 0, err
	}
	return SumAll(entries), nil
}
