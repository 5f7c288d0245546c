package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RecordConversionRequest struct {
	ReferralCode   string
	PurchaseAmount decimal.Decimal
	OrderReference string
	OccurredAt     *time.Time
	Metadata       map[string]any
	// BusinessID, when set, must own the deal behind the code.
	BusinessID snowflake.ID
}

type ConversionResult struct {
	Record RecordResponse `json:"record"`
	// Replayed is true when the order reference was already recorded.
	Replayed bool `json:"replayed"`
}

type DealEarnings struct {
	DealID          snowflake.ID `json:"deal_id"`
	DealName        string       `json:"deal_name"`
	BusinessName    string       `json:"business_name"`
	ConversionCount int64        `json:"conversion_count"`
	PurchaseTotal   string       `json:"purchase_total"`
	Commission      string       `json:"commission"`
}

type EarningsSummary struct {
	ReferrerUserID  snowflake.ID   `json:"referrer_user_id"`
	TotalCommission string         `json:"total_commission"`
	ConversionCount int64          `json:"conversion_count"`
	Deals           []DealEarnings `json:"per_deal_breakdown"`
}

type DealRevenue struct {
	DealID          snowflake.ID `json:"deal_id"`
	DealName        string       `json:"deal_name"`
	ConversionCount int64        `json:"conversion_count"`
	PurchaseTotal   string       `json:"purchase_total"`
	Revenue         string       `json:"revenue"`
	CommissionPaid  string       `json:"commission_paid"`
}

type RevenueSummary struct {
	BusinessID          snowflake.ID  `json:"business_id"`
	TotalRevenue        string        `json:"total_revenue"`
	TotalCommissionPaid string        `json:"total_commission_paid"`
	ConversionCount     int64         `json:"conversion_count"`
	Deals               []DealRevenue `json:"per_deal_breakdown"`
}

type TopReferrer struct {
	ReferrerUserID  snowflake.ID `json:"referrer_user_id"`
	ConversionCount int64        `json:"conversion_count"`
	Commission      string       `json:"commission"`
}

type DailyTrend struct {
	Date        string `json:"date"`
	Conversions int64  `json:"conversions"`
	Commission  string `json:"commission"`
	Revenue     string `json:"revenue"`
}

type BusinessAnalytics struct {
	BusinessID        snowflake.ID  `json:"business_id"`
	Days              int           `json:"days"`
	TotalSubscribers  int64         `json:"total_subscribers"`
	ActiveSubscribers int64         `json:"active_subscribers"`
	ConversionCount   int64         `json:"conversion_count"`
	TotalCommission   string        `json:"total_commission"`
	AverageCommission string        `json:"average_commission"`
	TopReferrers      []TopReferrer `json:"top_referrers"`
	DailyTrends       []DailyTrend  `json:"daily_trends"`
}

type MonthlyEarning struct {
	Month       string `json:"month"`
	Conversions int64  `json:"conversions"`
	Commission  string `json:"commission"`
}

type ReferrerPerformance struct {
	ReferrerUserID  snowflake.ID     `json:"referrer_user_id"`
	TotalCommission string           `json:"total_commission"`
	ConversionCount int64            `json:"conversion_count"`
	TopDeals        []DealEarnings   `json:"top_deals"`
	MonthlyEarnings []MonthlyEarning `json:"monthly_earnings"`
}

type Service interface {
	RecordConversion(context.Context, RecordConversionRequest) (ConversionResult, error)
	GetEarningsSummary(ctx context.Context, referrerID snowflake.ID) (EarningsSummary, error)
	GetRevenueSummary(ctx context.Context, businessID snowflake.ID) (RevenueSummary, error)
	GetBusinessAnalytics(ctx context.Context, businessID snowflake.ID, days int) (BusinessAnalytics, error)
	GetReferrerPerformance(ctx context.Context, referrerID snowflake.ID) (ReferrerPerformance, error)
	RenderEarningsStatement(ctx context.Context, referrerID snowflake.ID) ([]byte, error)
}

const (
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 365
	TopReferrersLimit    = 10
	TopDealsLimit        = 5
	PerformanceMonths    = 12
	MaxOrderReference    = 128
)

var (
	ErrInvalidReferralCode   = errors.New("invalid_referral_code")
	ErrInvalidPurchaseAmount = errors.New("invalid_purchase_amount")
	ErrInvalidOrderReference = errors.New("invalid_order_reference")
	ErrInvalidOccurredAt     = errors.New("invalid_occurred_at")
	ErrInvalidReferrer       = errors.New("invalid_referrer")
	ErrInvalidBusiness       = errors.New("invalid_business")
	ErrInvalidDays           = errors.New("invalid_days")
	ErrNotFound              = errors.New("not_found")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrSubscriptionInactive  = errors.New("subscription_inactive")
)
