package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Deal is a referral offer published by a business. The reward columns are a
// storage shape; use Reward to read them.
type Deal struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	BusinessID        snowflake.ID        `gorm:"not null;index" json:"business_id"`
	BusinessName      string              `gorm:"not null;default:''" json:"business_name"`
	Industry          string              `gorm:"not null;default:'';index" json:"industry"`
	Name              string              `gorm:"column:deal_name;not null" json:"deal_name"`
	Slug              string              `gorm:"not null;default:''" json:"slug"`
	Description       string              `gorm:"column:deal_description;not null" json:"deal_description"`
	PosterText        string              `gorm:"not null;default:''" json:"poster_text"`
	RewardType        RewardType          `gorm:"type:varchar(16);not null" json:"reward_type"`
	CustomerIncentive decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"customer_incentive"`
	NoRewardReason    *NoRewardReason     `gorm:"type:varchar(32)" json:"no_reward_reason"`
	IsActive          bool                `gorm:"not null;default:true" json:"is_active"`
	IsFeatured        bool                `gorm:"not null;default:false" json:"is_featured"`
	SubscribersCount  int64               `gorm:"not null;default:0" json:"subscribers_count"`
	CreatedAt         time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Deal) TableName() string { return "deals" }

// Reward rebuilds the variant from the stored columns. A row that violates the
// reward constraints yields NoReward with an empty reason, which pays nothing.
func (d Deal) Reward() Reward {
	if d.RewardType == RewardTypeCommission && d.CustomerIncentive.Valid {
		return CommissionReward{Percent: d.CustomerIncentive.Decimal}
	}
	r := NoReward{}
	if d.NoRewardReason != nil {
		r.Reason = *d.NoRewardReason
	}
	return r
}

// SetReward writes the variant into the storage columns.
func (d *Deal) SetReward(r Reward) {
	switch v := r.(type) {
	case CommissionReward:
		d.RewardType = RewardTypeCommission
		d.CustomerIncentive = decimal.NullDecimal{Decimal: v.Percent, Valid: true}
		d.NoRewardReason = nil
	case NoReward:
		reason := v.Reason
		d.RewardType = RewardTypeNoReward
		d.CustomerIncentive = decimal.NullDecimal{}
		d.NoRewardReason = &reason
	case *CommissionReward:
		d.SetReward(*v)
	case *NoReward:
		d.SetReward(*v)
	}
}

// SubscriptionInfo is the viewer's subscription embedded in a deal view.
type SubscriptionInfo struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	ReferralCode   string       `json:"referral_code"`
	ReferralLink   string       `json:"referral_link"`
	IsActive       bool         `json:"is_active"`
	SubscribedAt   time.Time    `json:"subscribed_at"`
}

type DealView struct {
	Deal
	SubscriptionInfo *SubscriptionInfo `json:"subscription_info,omitempty"`
}

type PosterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type PosterOptions struct {
	RewardTypes     []PosterOption `json:"reward_types"`
	NoRewardReasons []PosterOption `json:"no_reward_reasons"`
}
