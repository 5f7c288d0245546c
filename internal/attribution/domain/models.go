package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/pkg/money"
	"gorm.io/datatypes"
)

// AttributionRecord is one conversion credited to a subscription. Commission
// and business revenue always sum to the purchase amount.
type AttributionRecord struct {
	ID                   snowflake.ID          `gorm:"primaryKey" json:"id"`
	SubscriptionID       snowflake.ID          `gorm:"not null;index;uniqueIndex:ux_attribution_records_order,priority:1" json:"subscription_id"`
	DealID               snowflake.ID          `gorm:"not null;index" json:"deal_id"`
	BusinessID           snowflake.ID          `gorm:"not null;index" json:"business_id"`
	ReferrerUserID       snowflake.ID          `gorm:"not null;index" json:"referrer_user_id"`
	RewardType           dealdomain.RewardType `gorm:"type:varchar(16);not null" json:"reward_type"`
	IncentivePercent     decimal.NullDecimal   `gorm:"type:numeric(5,2)" json:"incentive_percent"`
	PurchaseAmountCents  int64                 `gorm:"not null" json:"purchase_amount_cents"`
	CommissionCents      int64                 `gorm:"not null" json:"commission_cents"`
	BusinessRevenueCents int64                 `gorm:"not null" json:"business_revenue_cents"`
	OrderReference       *string               `gorm:"type:varchar(128);uniqueIndex:ux_attribution_records_order,priority:2" json:"order_reference,omitempty"`
	Metadata             datatypes.JSONMap     `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt           time.Time             `gorm:"not null;index" json:"occurred_at"`
	CreatedAt            time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AttributionRecord) TableName() string { return "attribution_records" }

type RecordResponse struct {
	ID                    snowflake.ID          `json:"id"`
	SubscriptionID        snowflake.ID          `json:"subscription_id"`
	DealID                snowflake.ID          `json:"deal_id"`
	BusinessID            snowflake.ID          `json:"business_id"`
	ReferrerUserID        snowflake.ID          `json:"referrer_user_id"`
	RewardType            dealdomain.RewardType `json:"reward_type"`
	IncentivePercent      decimal.NullDecimal   `json:"incentive_percent"`
	PurchaseAmount        string                `json:"purchase_amount"`
	AmountCommission      string                `json:"amount_commission"`
	AmountBusinessRevenue string                `json:"amount_business_revenue"`
	OrderReference        *string               `json:"order_reference,omitempty"`
	Metadata              datatypes.JSONMap     `json:"metadata,omitempty"`
	OccurredAt            time.Time             `json:"occurred_at"`
}

func (r AttributionRecord) Response() RecordResponse {
	return RecordResponse{
		ID:                    r.ID,
		SubscriptionID:        r.SubscriptionID,
		DealID:                r.DealID,
		BusinessID:            r.BusinessID,
		ReferrerUserID:        r.ReferrerUserID,
		RewardType:            r.RewardType,
		IncentivePercent:      r.IncentivePercent,
		PurchaseAmount:        money.Format(r.PurchaseAmountCents),
		AmountCommission:      money.Format(r.CommissionCents),
		AmountBusinessRevenue: money.Format(r.BusinessRevenueCents),
		OrderReference:        r.OrderReference,
		Metadata:              r.Metadata,
		OccurredAt:            r.OccurredAt,
	}
}

// DealTotals is a per-deal aggregate over attribution records.
type DealTotals struct {
	DealID               snowflake.ID
	ConversionCount      int64
	PurchaseAmountCents  int64
	CommissionCents      int64
	BusinessRevenueCents int64
}

type ReferrerTotals struct {
	ReferrerUserID  snowflake.ID
	ConversionCount int64
	CommissionCents int64
}

// RecordPoint is the slice of a record needed for time bucketing.
type RecordPoint struct {
	OccurredAt           time.Time
	CommissionCents      int64
	BusinessRevenueCents int64
}

type SubscriberCounts struct {
	Total  int64
	Active int64
}
