package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/dealshark/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List pages newest first by id. It fetches limit+1 rows so the caller can
// tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := db.WithContext(ctx).
		Scopes(byActor(filter.ActorType, filter.ActorID), byAction(filter.Action), beforeCursor(filter)).
		Order("id desc").
		Limit(pageLimit(filter.Limit)).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func byActor(actorType, actorID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("actor_type = ? AND actor_id = ?", actorType, actorID)
	}
}

func byAction(action string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if action = strings.TrimSpace(action); action == "" {
			return db
		}
		return db.Where("action = ?", action)
	}
}

func beforeCursor(filter domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Cursor == nil {
			return db
		}
		return db.Where("id < ?", *filter.Cursor)
	}
}

// pageLimit returns -1, which gorm reads as no limit, for non-positive values.
func pageLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit + 1
}
