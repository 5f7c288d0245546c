package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/attribution/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.AttributionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO attribution_records (id, subscription_id, deal_id, business_id, referrer_user_id, reward_type,
		 incentive_percent, purchase_amount_cents, commission_cents, business_revenue_cents, order_reference,
		 metadata, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SubscriptionID,
		record.DealID,
		record.BusinessID,
		record.ReferrerUserID,
		record.RewardType,
		record.IncentivePercent,
		record.PurchaseAmountCents,
		record.CommissionCents,
		record.BusinessRevenueCents,
		record.OrderReference,
		record.Metadata,
		record.OccurredAt,
		record.CreatedAt,
	).Error
}

func (r *repo) FindByOrderReference(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, orderReference string) (*domain.AttributionRecord, error) {
	var record domain.AttributionRecord
	err := db.WithContext(ctx).
		Model(&domain.AttributionRecord{}).
		Where("subscription_id = ? AND order_reference = ?", subscriptionID, orderReference).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

const dealTotalsSelect = `SELECT deal_id,
	COUNT(*) AS conversion_count,
	COALESCE(SUM(purchase_amount_cents), 0) AS purchase_amount_cents,
	COALESCE(SUM(commission_cents), 0) AS commission_cents,
	COALESCE(SUM(business_revenue_cents), 0) AS business_revenue_cents
	FROM attribution_records`

func (r *repo) TotalsByDealForReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) ([]domain.DealTotals, error) {
	var totals []domain.DealTotals
	err := db.WithContext(ctx).Raw(
		dealTotalsSelect+` WHERE referrer_user_id = ? GROUP BY deal_id ORDER BY deal_id`,
		referrerID,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) TotalsByDealForBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]domain.DealTotals, error) {
	var totals []domain.DealTotals
	err := db.WithContext(ctx).Raw(
		dealTotalsSelect+` WHERE business_id = ? GROUP BY deal_id ORDER BY deal_id`,
		businessID,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) TopReferrers(ctx context.Context, db *gorm.DB, businessID snowflake.ID, since time.Time, limit int) ([]domain.ReferrerTotals, error) {
	var totals []domain.ReferrerTotals
	err := db.WithContext(ctx).Raw(
		`SELECT referrer_user_id,
		 COUNT(*) AS conversion_count,
		 COALESCE(SUM(commission_cents), 0) AS commission_cents
		 FROM attribution_records
		 WHERE business_id = ? AND occurred_at >= ?
		 GROUP BY referrer_user_id
		 ORDER BY commission_cents DESC, referrer_user_id ASC
		 LIMIT ?`,
		businessID, since, limit,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) PointsForBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, since time.Time) ([]domain.RecordPoint, error) {
	return r.points(ctx, db, "business_id", businessID, since)
}

func (r *repo) PointsForReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, since time.Time) ([]domain.RecordPoint, error) {
	return r.points(ctx, db, "referrer_user_id", referrerID, since)
}

// column is always a literal from this file.
func (r *repo) points(ctx context.Context, db *gorm.DB, column string, id snowflake.ID, since time.Time) ([]domain.RecordPoint, error) {
	var points []domain.RecordPoint
	err := db.WithContext(ctx).
		Model(&domain.AttributionRecord{}).
		Select("occurred_at", "commission_cents", "business_revenue_cents").
		Where(column+" = ? AND occurred_at >= ?", id, since).
		Order("occurred_at asc").
		Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *repo) CountSubscribers(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (domain.SubscriberCounts, error) {
	var counts domain.SubscriberCounts
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total,
		 COALESCE(SUM(CASE WHEN s.is_active THEN 1 ELSE 0 END), 0) AS active
		 FROM referral_subscriptions s
		 JOIN deals d ON d.id = s.deal_id
		 WHERE d.business_id = ?`,
		businessID,
	).Scan(&counts).Error
	if err != nil {
		return domain.SubscriberCounts{}, err
	}
	return counts, nil
}
