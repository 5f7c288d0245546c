package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
)

// Subscription binds one referrer to one deal. There is exactly one row per
// pair; unsubscribing only flips IsActive, so the code and its history survive.
type Subscription struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	DealID               snowflake.ID `gorm:"not null;uniqueIndex:ux_referral_subscriptions_pair,priority:1" json:"deal_id"`
	ReferrerUserID       snowflake.ID `gorm:"not null;uniqueIndex:ux_referral_subscriptions_pair,priority:2;index" json:"referrer_user_id"`
	ReferralCode         string       `gorm:"type:varchar(32);not null;uniqueIndex:ux_referral_subscriptions_code" json:"referral_code"`
	IsActive             bool         `gorm:"not null;default:true" json:"is_active"`
	ConversionCount      int64        `gorm:"not null;default:0" json:"conversion_count"`
	TotalCommissionCents int64        `gorm:"not null;default:0" json:"total_commission_cents"`
	TotalRevenueCents    int64        `gorm:"not null;default:0" json:"total_revenue_cents"`
	UnsubscribedAt       *time.Time   `json:"unsubscribed_at,omitempty"`
	ReactivatedAt        *time.Time   `json:"reactivated_at,omitempty"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "referral_subscriptions" }

// Info is the projection embedded in deal views.
func (s Subscription) Info(link string) *dealdomain.SubscriptionInfo {
	return &dealdomain.SubscriptionInfo{
		SubscriptionID: s.ID,
		ReferralCode:   s.ReferralCode,
		ReferralLink:   link,
		IsActive:       s.IsActive,
		SubscribedAt:   s.CreatedAt,
	}
}

// SubscriptionView is returned by subscribe and unsubscribe so callers get the
// new state without another read.
type SubscriptionView struct {
	Subscription Subscription    `json:"subscription"`
	ReferralLink string          `json:"referral_link"`
	Deal         dealdomain.Deal `json:"deal"`
	Reactivated  bool            `json:"reactivated,omitempty"`
}

// SubscriberView is one row of a business's subscriber dashboard.
type SubscriberView struct {
	SubscriptionID       snowflake.ID `json:"subscription_id"`
	ReferrerUserID       snowflake.ID `json:"referrer_user_id"`
	DealID               snowflake.ID `json:"deal_id"`
	DealName             string       `json:"deal_name"`
	ReferralCode         string       `json:"referral_code"`
	IsActive             bool         `json:"is_active"`
	ConversionCount      int64        `json:"conversion_count"`
	TotalCommissionCents int64        `json:"total_commission_cents"`
	TotalRevenueCents    int64        `json:"total_revenue_cents"`
	SubscribedAt         time.Time    `json:"subscribed_at"`
}
