package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
)

type CreateDealRequest struct {
	BusinessID   snowflake.ID
	BusinessName string
	Industry     string
	Name         string
	Description  string
	PosterText   string
	Reward       Reward
	IsFeatured   bool
}

type GetDealRequest struct {
	ID       snowflake.ID
	ViewerID *snowflake.ID
}

type ListDealRequest struct {
	PageToken       string
	PageSize        int32
	Search          string
	Industry        string
	RewardType      string
	BusinessID      *snowflake.ID
	MinIncentive    *decimal.Decimal
	IsFeatured      *bool
	IncludeInactive bool
}

type ListDealResponse struct {
	pagination.PageInfo
	Deals []Deal `json:"deals"`
}

type DeactivateDealRequest struct {
	DealID     snowflake.ID
	BusinessID snowflake.ID
}

type Service interface {
	Create(context.Context, CreateDealRequest) (Deal, error)
	Get(context.Context, GetDealRequest) (DealView, error)
	List(context.Context, ListDealRequest) (ListDealResponse, error)
	ListByBusiness(ctx context.Context, businessID snowflake.ID, includeInactive bool) ([]Deal, error)
	Trending(ctx context.Context, limit int) ([]Deal, error)
	Deactivate(context.Context, DeactivateDealRequest) (Deal, error)
	PosterOptions() PosterOptions
}

const MaxNameLength = 200

var (
	ErrInvalidBusiness       = errors.New("invalid_business")
	ErrInvalidName           = errors.New("invalid_deal_name")
	ErrInvalidDescription    = errors.New("invalid_deal_description")
	ErrInvalidRewardType     = errors.New("invalid_reward_type")
	ErrInvalidIncentive      = errors.New("invalid_customer_incentive")
	ErrInvalidNoRewardReason = errors.New("invalid_no_reward_reason")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
	ErrDealInactive          = errors.New("deal_inactive")
	ErrNotFound              = errors.New("not_found")
	ErrForbidden             = errors.New("forbidden")
)
