package httpapi

import (
	"time"

	"github.com/gocarina/gocsv"

	"tellerpos/backend/internal/domain"
)

type salesReportRow struct {
	Window           string `csv:"window"`
	From             string `csv:"from"`
	To               string `csv:"to"`
	TellerID         string `csv:"teller_id"`
	TellerUsername   string `csv:"teller_username"`
	TotalSales       string `csv:"total_sales"`
	TransactionCount int64  `csv:"transaction_count"`
}

// salesReportToCSV writes one row per window and teller. Windows without
// sales produce no rows.
func salesReportToCSV(report domain.SalesReport) ([]byte, error) {
	rows := make([]salesReportRow, 0)
	for _, window := range report.Windows {
		for _, sales := range window.Rows {
			rows = append(rows, salesReportRow{
				Window:           window.Name,
				From:             formatBound(window.From),
				To:               formatBound(window.To),
				TellerID:         sales.TellerID,
				TellerUsername:   sales.TellerUsername,
				TotalSales:       sales.TotalSales.StringFixed(2),
				TransactionCount: sales.TransactionCount,
			})
		}
	}
	return gocsv.MarshalBytes(&rows)
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
