package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *AttributionRecord) error
	FindByOrderReference(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, orderReference string) (*AttributionRecord, error)
	TotalsByDealForReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID) ([]DealTotals, error)
	TotalsByDealForBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]DealTotals, error)
	TopReferrers(ctx context.Context, db *gorm.DB, businessID snowflake.ID, since time.Time, limit int) ([]ReferrerTotals, error)
	PointsForBusiness(ctx context.Context, db *gorm.DB, businessID snowflake.ID, since time.Time) ([]RecordPoint, error)
	PointsForReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, since time.Time) ([]RecordPoint, error)
	CountSubscribers(ctx context.Context, db *gorm.DB, businessID snowflake.ID) (SubscriberCounts, error)
}
