package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/internal/attribution/domain"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/providers/pdf"
	"github.com/smallbiznis/dealshark/pkg/money"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

func (s *Service) GetEarningsSummary(ctx context.Context, referrerID snowflake.ID) (domain.EarningsSummary, error) {
	if referrerID == 0 {
		return domain.EarningsSummary{}, domain.ErrInvalidReferrer
	}

	deals, totals, err := s.referrerTotals(ctx, referrerID)
	if err != nil {
		return domain.EarningsSummary{}, err
	}

	summary := domain.EarningsSummary{
		ReferrerUserID: referrerID,
		Deals:          make([]domain.DealEarnings, 0, len(totals)),
	}
	var commission int64
	for _, t := range totals {
		commission += t.CommissionCents
		summary.ConversionCount += t.ConversionCount
		summary.Deals = append(summary.Deals, dealEarnings(t, deals[t.DealID]))
	}
	summary.TotalCommission = money.Format(commission)
	return summary, nil
}

func (s *Service) GetRevenueSummary(ctx context.Context, businessID snowflake.ID) (domain.RevenueSummary, error) {
	if businessID == 0 {
		return domain.RevenueSummary{}, domain.ErrInvalidBusiness
	}

	totals, err := s.repo.TotalsByDealForBusiness(ctx, s.db, businessID)
	if err != nil {
		return domain.RevenueSummary{}, err
	}
	deals, err := s.dealRepo.FindByIDs(ctx, s.db, dealIDs(totals))
	if err != nil {
		return domain.RevenueSummary{}, err
	}

	summary := domain.RevenueSummary{
		BusinessID: businessID,
		Deals:      make([]domain.DealRevenue, 0, len(totals)),
	}
	var revenue, commission int64
	for _, t := range totals {
		revenue += t.BusinessRevenueCents
		commission += t.CommissionCents
		summary.ConversionCount += t.ConversionCount

		line := domain.DealRevenue{
			DealID:          t.DealID,
			ConversionCount: t.ConversionCount,
			PurchaseTotal:   money.Format(t.PurchaseAmountCents),
			Revenue:         money.Format(t.BusinessRevenueCents),
			CommissionPaid:  money.Format(t.CommissionCents),
		}
		if deal := deals[t.DealID]; deal != nil {
			line.DealName = deal.Name
		}
		summary.Deals = append(summary.Deals, line)
	}
	summary.TotalRevenue = money.Format(revenue)
	summary.TotalCommissionPaid = money.Format(commission)
	return summary, nil
}

// GetBusinessAnalytics reports over the trailing window of days, counted in
// whole UTC days including today.
func (s *Service) GetBusinessAnalytics(ctx context.Context, businessID snowflake.ID, days int) (domain.BusinessAnalytics, error) {
	if businessID == 0 {
		return domain.BusinessAnalytics{}, domain.ErrInvalidBusiness
	}
	if days == 0 {
		days = domain.DefaultAnalyticsDays
	}
	if days < 1 || days > domain.MaxAnalyticsDays {
		return domain.BusinessAnalytics{}, domain.ErrInvalidDays
	}

	today := truncateDay(s.clock.Now())
	since := today.AddDate(0, 0, -(days - 1))

	counts, err := s.repo.CountSubscribers(ctx, s.db, businessID)
	if err != nil {
		return domain.BusinessAnalytics{}, err
	}
	top, err := s.repo.TopReferrers(ctx, s.db, businessID, since, domain.TopReferrersLimit)
	if err != nil {
		return domain.BusinessAnalytics{}, err
	}
	points, err := s.repo.PointsForBusiness(ctx, s.db, businessID, since)
	if err != nil {
		return domain.BusinessAnalytics{}, err
	}

	type bucket struct {
		conversions int64
		commission  int64
		revenue     int64
	}
	buckets := make(map[string]*bucket, days)
	var conversions, commission int64
	for _, p := range points {
		key := p.OccurredAt.UTC().Format(dayLayout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.conversions++
		b.commission += p.CommissionCents
		b.revenue += p.BusinessRevenueCents
		conversions++
		commission += p.CommissionCents
	}

	trends := make([]domain.DailyTrend, 0, days)
	for day := since; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		trend := domain.DailyTrend{Date: key, Commission: money.Format(0), Revenue: money.Format(0)}
		if b, ok := buckets[key]; ok {
			trend.Conversions = b.conversions
			trend.Commission = money.Format(b.commission)
			trend.Revenue = money.Format(b.revenue)
		}
		trends = append(trends, trend)
	}

	topReferrers := make([]domain.TopReferrer, 0, len(top))
	for _, t := range top {
		topReferrers = append(topReferrers, domain.TopReferrer{
			ReferrerUserID:  t.ReferrerUserID,
			ConversionCount: t.ConversionCount,
			Commission:      money.Format(t.CommissionCents),
		})
	}

	return domain.BusinessAnalytics{
		BusinessID:        businessID,
		Days:              days,
		TotalSubscribers:  counts.Total,
		ActiveSubscribers: counts.Active,
		ConversionCount:   conversions,
		TotalCommission:   money.Format(commission),
		AverageCommission: averageCents(commission, conversions).StringFixed(2),
		TopReferrers:      topReferrers,
		DailyTrends:       trends,
	}, nil
}

func (s *Service) GetReferrerPerformance(ctx context.Context, referrerID snowflake.ID) (domain.ReferrerPerformance, error) {
	if referrerID == 0 {
		return domain.ReferrerPerformance{}, domain.ErrInvalidReferrer
	}

	deals, totals, err := s.referrerTotals(ctx, referrerID)
	if err != nil {
		return domain.ReferrerPerformance{}, err
	}

	perf := domain.ReferrerPerformance{ReferrerUserID: referrerID}
	var commission int64
	for _, t := range totals {
		commission += t.CommissionCents
		perf.ConversionCount += t.ConversionCount
	}
	perf.TotalCommission = money.Format(commission)

	ranked := append([]domain.DealTotals(nil), totals...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CommissionCents != ranked[j].CommissionCents {
			return ranked[i].CommissionCents > ranked[j].CommissionCents
		}
		return ranked[i].DealID < ranked[j].DealID
	})
	if len(ranked) > domain.TopDealsLimit {
		ranked = ranked[:domain.TopDealsLimit]
	}
	perf.TopDeals = make([]domain.DealEarnings, 0, len(ranked))
	for _, t := range ranked {
		perf.TopDeals = append(perf.TopDeals, dealEarnings(t, deals[t.DealID]))
	}

	now := s.clock.Now().UTC()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(domain.PerformanceMonths - 1), 0)
	points, err := s.repo.PointsForReferrer(ctx, s.db, referrerID, firstMonth)
	if err != nil {
		return domain.ReferrerPerformance{}, err
	}

	type bucket struct {
		conversions int64
		commission  int64
	}
	buckets := make(map[string]*bucket, domain.PerformanceMonths)
	for _, p := range points {
		key := p.OccurredAt.UTC().Format(monthLayout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.conversions++
		b.commission += p.CommissionCents
	}
	perf.MonthlyEarnings = make([]domain.MonthlyEarning, 0, domain.PerformanceMonths)
	for i := 0; i < domain.PerformanceMonths; i++ {
		key := firstMonth.AddDate(0, i, 0).Format(monthLayout)
		month := domain.MonthlyEarning{Month: key, Commission: money.Format(0)}
		if b, ok := buckets[key]; ok {
			month.Conversions = b.conversions
			month.Commission = money.Format(b.commission)
		}
		perf.MonthlyEarnings = append(perf.MonthlyEarnings, month)
	}

	return perf, nil
}

func (s *Service) RenderEarningsStatement(ctx context.Context, referrerID snowflake.ID) ([]byte, error) {
	summary, err := s.GetEarningsSummary(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		ReferrerID:      referrerID.String(),
		GeneratedAt:     s.clock.Now().UTC().Format(dayLayout),
		Currency:        s.cfg.Get().StatementCurrency,
		ConversionCount: summary.ConversionCount,
		TotalCommission: summary.TotalCommission,
		Lines:           make([]pdf.StatementLine, 0, len(summary.Deals)),
	}
	for _, d := range summary.Deals {
		data.Lines = append(data.Lines, pdf.StatementLine{
			DealName:        d.DealName,
			BusinessName:    d.BusinessName,
			Conversions:     d.ConversionCount,
			PurchaseTotal:   d.PurchaseTotal,
			CommissionTotal: d.Commission,
		})
	}
	return s.pdf.GenerateEarningsStatement(ctx, data)
}

func (s *Service) referrerTotals(ctx context.Context, referrerID snowflake.ID) (map[snowflake.ID]*dealdomain.Deal, []domain.DealTotals, error) {
	totals, err := s.repo.TotalsByDealForReferrer(ctx, s.db, referrerID)
	if err != nil {
		return nil, nil, err
	}
	deals, err := s.dealRepo.FindByIDs(ctx, s.db, dealIDs(totals))
	if err != nil {
		return nil, nil, err
	}
	return deals, totals, nil
}

func dealEarnings(t domain.DealTotals, deal *dealdomain.Deal) domain.DealEarnings {
	line := domain.DealEarnings{
		DealID:          t.DealID,
		ConversionCount: t.ConversionCount,
		PurchaseTotal:   money.Format(t.PurchaseAmountCents),
		Commission:      money.Format(t.CommissionCents),
	}
	if deal != nil {
		line.DealName = deal.Name
		line.BusinessName = deal.BusinessName
	}
	return line
}

func dealIDs(totals []domain.DealTotals) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.DealID)
	}
	return ids
}

// averageCents is total/count in currency units, rounded half up to the cent.
func averageCents(totalCents, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return money.FromCents(totalCents).Div(decimal.NewFromInt(count)).Round(2)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
