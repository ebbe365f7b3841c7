// Package reporting computes the sales windows and assembles per-teller
// reports from any source that can aggregate transactions.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tellerpos/backend/internal/domain"
)

const (
	WindowToday      = "today"
	WindowLast7Days  = "last_7_days"
	WindowLast30Days = "last_30_days"
	WindowAllTime    = "all_time"
)

type Window struct {
	Name string
	From *time.Time
	To   *time.Time
}

func (w Window) Query(tellerID string) domain.SalesQuery {
	return domain.SalesQuery{From: w.From, To: w.To, TellerID: tellerID}
}

// Midnight returns the start of the calendar day of t in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today is the calendar day containing now.
func Today(now time.Time) Window {
	from := Midnight(now)
	to := from.AddDate(0, 0, 1)
	return Window{Name: WindowToday, From: &from, To: &to}
}

// Windows returns today, last 7 days, last 30 days and all time, in that
// order. The rolling windows start at midnight 7 and 30 calendar days before
// now and are open-ended.
func Windows(now time.Time) []Window {
	midnight := Midnight(now)
	week := midnight.AddDate(0, 0, -7)
	month := midnight.AddDate(0, 0, -30)
	return []Window{
		Today(now),
		{Name: WindowLast7Days, From: &week},
		{Name: WindowLast30Days, From: &month},
		{Name: WindowAllTime},
	}
}

type SalesSource interface {
	SalesByTeller(ctx context.Context, query domain.SalesQuery) ([]domain.TellerSales, error)
}

// Build runs one aggregation per window. Windows are computed independently.
func Build(ctx context.Context, src SalesSource, now time.Time) (domain.SalesReport, error) {
	report := domain.SalesReport{GeneratedAt: now, Windows: make([]domain.SalesWindow, 0, 4)}
	for _, w := range Windows(now) {
		rows, err := src.SalesByTeller(ctx, w.Query(""))
		if err != nil {
			return domain.SalesReport{}, fmt.Errorf("sales window %s: %w", w.Name, err)
		}
		report.Windows = append(report.Windows, domain.SalesWindow{Name: w.Name, From: w.From, To: w.To, Rows: rows})
	}
	return report, nil
}

// Totals sums a window across tellers.
func Totals(rows []domain.TellerSales) (decimal.Decimal, int64) {
	total := decimal.Zero
	var count int64
	for _, row := range rows {
		total = total.Add(row.TotalSales)
		count += row.TransactionCount
	}
	return total, count
}
