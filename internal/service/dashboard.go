package service

import (
	"context"
	"strings"
	"time"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
)

// Dashboard summarizes the actor's catalog and sales history. Every part
// tolerates an empty history.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	actor, err := s.authorize(ctx, authz.DashboardRead, authz.Resource{})
	if err != nil {
		return domain.Dashboard{}, err
	}

	totals, err := s.repo.CountTotals(ctx, actor.UserID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	lowStock, err := s.repo.LowStockItems(ctx, actor.UserID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	monthly, err := s.repo.MonthlySales(ctx, actor.UserID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	best, err := s.repo.BestSeller(ctx, actor.UserID)
	if err != nil {
		return domain.Dashboard{}, err
	}

	if lowStock == nil {
		lowStock = []domain.LowStockItem{}
	}
	if monthly == nil {
		monthly = []domain.MonthlySales{}
	}
	return domain.Dashboard{
		TotalProducts:   totals.Items,
		TotalCategories: totals.Categories,
		LowStockItems:   lowStock,
		MonthlySales:    monthly,
		MostSoldItem:    best,
	}, nil
}

func (s *Service) LowStockItems(ctx context.Context) ([]domain.LowStockItem, error) {
	actor, err := s.authorize(ctx, authz.DashboardRead, authz.Resource{})
	if err != nil {
		return nil, err
	}
	items, err := s.repo.LowStockItems(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.LowStockItem{}
	}
	return items, nil
}

// SalesReport returns per-day sales, newest first. startDate and endDate are
// YYYY-MM-DD and inclusive; both must be given or both left empty.
func (s *Service) SalesReport(ctx context.Context, startDate, endDate string) (domain.SalesReport, error) {
	actor, err := s.authorize(ctx, authz.SaleRead, authz.Resource{})
	if err != nil {
		return domain.SalesReport{}, err
	}

	dateRange, err := parseReportRange(strings.TrimSpace(startDate), strings.TrimSpace(endDate))
	if err != nil {
		return domain.SalesReport{}, err
	}

	days, err := s.repo.DailySales(ctx, actor.UserID, dateRange)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if days == nil {
		days = []domain.DailySales{}
	}
	report := domain.SalesReport{Days: days}
	if dateRange != nil {
		report.StartDate = dateRange.From.Format(time.DateOnly)
		report.EndDate = dateRange.To.AddDate(0, 0, -1).Format(time.DateOnly)
	}
	return report, nil
}

func parseReportRange(startDate, endDate string) (*domain.DateRange, error) {
	if startDate == "" && endDate == "" {
		return nil, nil
	}

	var v domain.Validator
	v.Check(startDate != "", "start_date", "is required when end_date is set")
	v.Check(endDate != "", "end_date", "is required when start_date is set")
	if err := v.Err(); err != nil {
		return nil, err
	}

	from, err := time.ParseInLocation(time.DateOnly, startDate, time.UTC)
	v.Check(err == nil, "start_date", "must be YYYY-MM-DD")
	to, err := time.ParseInLocation(time.DateOnly, endDate, time.UTC)
	v.Check(err == nil, "end_date", "must be YYYY-MM-DD")
	if err := v.Err(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, domain.NewValidationError("end_date", "must not be before start_date")
	}
	return &domain.DateRange{From: from, To: to.AddDate(0, 0, 1)}, nil
}
