package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tellerpos/backend/internal/cache"
	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/reporting"
)

// SalesReport returns per-teller totals for today, the last 7 days, the last
// 30 days and all time.
func (s *Service) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	if _, err := s.authorize(ctx, domain.RoleManager); err != nil {
		return domain.SalesReport{}, err
	}
	return s.salesReport(ctx, s.currentTime())
}

func (s *Service) salesReport(ctx context.Context, now time.Time) (domain.SalesReport, error) {
	key := cache.ReportKey(now)
	cached, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("sales report cache read failed")
	}
	if ok && cached != nil {
		return *cached, nil
	}

	report, err := reporting.Build(ctx, s.repo, now)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("sales report cache write failed")
	}
	return report, nil
}

// TodaySales lists the calling teller's transactions for the current
// calendar day.
func (s *Service) TodaySales(ctx context.Context) (domain.TodaySalesResponse, error) {
	actor, err := s.authorize(ctx, domain.RoleTeller)
	if err != nil {
		return domain.TodaySalesResponse{}, err
	}

	now := s.currentTime()
	window := reporting.Today(now)
	txs, err := s.repo.ListTransactions(ctx, window.Query(actor.UserID))
	if err != nil {
		return domain.TodaySalesResponse{}, err
	}

	resp := domain.TodaySalesResponse{
		Date:         now.Format(time.DateOnly),
		TotalSales:   decimal.Zero,
		Transactions: txs,
	}
	for _, tx := range txs {
		resp.TotalSales = resp.TotalSales.Add(tx.TotalAmount)
		resp.TransactionCount++
	}
	return resp, nil
}

// Dashboard summarises the system for the caller's role.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Dashboard{}, ErrForbidden
	}
	role, ok := s.ResolveRole(ctx, actor)
	if !ok {
		return domain.Dashboard{}, ErrForbidden
	}

	now := s.currentTime()
	dash := domain.Dashboard{Role: role}
	switch role {
	case domain.RoleAdmin:
		total, active, err := s.repo.CountUsers(ctx)
		if err != nil {
			return domain.Dashboard{}, err
		}
		dash.Admin = &domain.AdminDashboard{TotalUsers: total, ActiveUsers: active}

	case domain.RoleManager:
		report, err := s.salesReport(ctx, now)
		if err != nil {
			return domain.Dashboard{}, err
		}
		m := &domain.ManagerDashboard{}
		for _, w := range report.Windows {
			total, _ := reporting.Totals(w.Rows)
			switch w.Name {
			case reporting.WindowToday:
				m.DailySales = total
			case reporting.WindowLast7Days:
				m.WeeklySales = total
			case reporting.WindowLast30Days:
				m.MonthlySales = total
			case reporting.WindowAllTime:
				m.TotalSales = total
			}
		}
		dash.Manager = m

	case domain.RoleTeller:
		rows, err := s.repo.SalesByTeller(ctx, reporting.Today(now).Query(actor.UserID))
		if err != nil {
			return domain.Dashboard{}, err
		}
		total, count := reporting.Totals(rows)
		dash.Teller = &domain.TellerDashboard{TodaySales: total, TodayTransactions: count}
	}
	return dash, nil
}
