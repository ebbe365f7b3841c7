package cache

import (
	"context"
	"time"

	"tellerpos/backend/internal/domain"
)

// ReportCache holds assembled sales reports keyed by calendar day.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesReport, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReportKey is the cache key for the report generated on day's calendar date.
func ReportKey(day time.Time) string {
	return "pos:sales-report:" + day.Format(time.DateOnly)
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.SalesReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Delete(_ context.Context, _ string) error {
	return nil
}
