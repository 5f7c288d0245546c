package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListDealFilter struct {
	Search          string
	Industry        string
	RewardType      RewardType
	BusinessID      *snowflake.ID
	MinIncentive    *decimal.Decimal
	IsFeatured      *bool
	IncludeInactive bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, deal *Deal) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Deal, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Deal, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]*Deal, error)
	List(ctx context.Context, db *gorm.DB, filter ListDealFilter, page pagination.Pagination) ([]*Deal, error)
	ListByBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, includeInactive bool) ([]*Deal, error)
	ListTrending(ctx context.Context, db *gorm.DB, limit int) ([]*Deal, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error
	// AdjustSubscribers adds delta to subscribers_count, never going below zero.
	AdjustSubscribers(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, now time.Time) error
}
