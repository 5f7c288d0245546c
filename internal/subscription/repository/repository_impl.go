package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_subscriptions (id, deal_id, referrer_user_id, referral_code, is_active,
		 conversion_count, total_commission_cents, total_revenue_cents, unsubscribed_at, reactivated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.DealID,
		sub.ReferrerUserID,
		sub.ReferralCode,
		sub.IsActive,
		sub.ConversionCount,
		sub.TotalCommissionCents,
		sub.TotalRevenueCents,
		sub.UnsubscribedAt,
		sub.ReactivatedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByPair(ctx context.Context, db *gorm.DB, dealID, referrerID snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).Where("deal_id = ? AND referrer_user_id = ?", dealID, referrerID))
}

func (r *repo) FindByPairForUpdate(ctx context.Context, db *gorm.DB, dealID, referrerID snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("deal_id = ? AND referrer_user_id = ?", dealID, referrerID))
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).Where("referral_code = ?", code))
}

func (r *repo) findOne(stmt *gorm.DB) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := stmt.Model(&domain.Subscription{}).Limit(1).Find(&sub).Error; err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, onlyActive bool) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	stmt := db.WithContext(ctx).Where("referrer_user_id = ?", referrerID)
	if onlyActive {
		stmt = stmt.Where("is_active = ?", true)
	}
	if err := stmt.Order("id desc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repo) ListByDeals(ctx context.Context, db *gorm.DB, dealIDs []snowflake.ID) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	if len(dealIDs) == 0 {
		return subs, nil
	}
	if err := db.WithContext(ctx).Where("deal_id IN ?", dealIDs).Order("id asc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	if active {
		return db.WithContext(ctx).Exec(
			`UPDATE referral_subscriptions SET is_active = ?, reactivated_at = ?, updated_at = ? WHERE id = ?`,
			true, now, now, id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE referral_subscriptions SET is_active = ?, unsubscribed_at = ?, updated_at = ? WHERE id = ?`,
		false, now, now, id,
	).Error
}

func (r *repo) AddTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, commissionCents, revenueCents int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE referral_subscriptions
		 SET conversion_count = conversion_count + 1,
		     total_commission_cents = total_commission_cents + ?,
		     total_revenue_cents = total_revenue_cents + ?,
		     updated_at = ?
		 WHERE id = ?`,
		commissionCents, revenueCents, now, id,
	).Error
}
