package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/pkg/db/option"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, deal *domain.Deal) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deals (id, business_id, business_name, industry, deal_name, slug, deal_description, poster_text,
		 reward_type, customer_incentive, no_reward_reason, is_active, is_featured, subscribers_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID,
		deal.BusinessID,
		deal.BusinessName,
		deal.Industry,
		deal.Name,
		deal.Slug,
		deal.Description,
		deal.PosterText,
		deal.RewardType,
		deal.CustomerIncentive,
		deal.NoRewardReason,
		deal.IsActive,
		deal.IsFeatured,
		deal.SubscribersCount,
		deal.CreatedAt,
		deal.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		Limit(1).
		Find(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		Limit(1).
		Find(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]*domain.Deal, error) {
	out := make(map[snowflake.ID]*domain.Deal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var deals []*domain.Deal
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&deals).Error; err != nil {
		return nil, err
	}
	for _, deal := range deals {
		out[deal.ID] = deal
	}
	return out, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListDealFilter, page pagination.Pagination) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	stmt := db.WithContext(ctx).Model(&domain.Deal{})
	if !filter.IncludeInactive {
		stmt = stmt.Where("is_active = ?", true)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		stmt = stmt.Where(
			`(LOWER(deal_name) LIKE ? ESCAPE '!' OR LOWER(deal_description) LIKE ? ESCAPE '!' OR LOWER(business_name) LIKE ? ESCAPE '!')`,
			pattern, pattern, pattern,
		)
	}
	if filter.Industry != "" {
		stmt = stmt.Where("LOWER(industry) = ?", strings.ToLower(filter.Industry))
	}
	if filter.RewardType != "" {
		stmt = stmt.Where("reward_type = ?", filter.RewardType)
	}
	if filter.BusinessID != nil {
		stmt = stmt.Where("business_id = ?", *filter.BusinessID)
	}
	if filter.MinIncentive != nil {
		stmt = stmt.Where("reward_type = ? AND customer_incentive >= ?", domain.RewardTypeCommission, *filter.MinIncentive)
	}
	if filter.IsFeatured != nil {
		stmt = stmt.Where("is_featured = ?", *filter.IsFeatured)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id asc").Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, includeInactive bool) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	stmt := db.WithContext(ctx).Where("business_id = ?", businessID)
	if !includeInactive {
		stmt = stmt.Where("is_active = ?", true)
	}
	if err := stmt.Order("id desc").Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) ListTrending(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("subscribers_count desc, id asc").
		Limit(limit).
		Find(&deals).Error
	if err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE deals SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, now, id,
	).Error
}

func (r *repo) AdjustSubscribers(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE deals
		 SET subscribers_count = CASE WHEN subscribers_count + ? < 0 THEN 0 ELSE subscribers_count + ? END,
		     updated_at = ?
		 WHERE id = ?`,
		delta, delta, now, id,
	).Error
}

func escapeLike(value string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(value)
}
