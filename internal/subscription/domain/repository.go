package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByPair(ctx context.Context, db *gorm.DB, dealID, referrerID snowflake.ID) (*Subscription, error)
	FindByPairForUpdate(ctx context.Context, db *gorm.DB, dealID, referrerID snowflake.ID) (*Subscription, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, onlyActive bool) ([]*Subscription, error)
	ListByDeals(ctx context.Context, db *gorm.DB, dealIDs []snowflake.ID) ([]*Subscription, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error
	// AddTotals accumulates one conversion. Callers must hold the row lock.
	AddTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, commissionCents, revenueCents int64, now time.Time) error
}
