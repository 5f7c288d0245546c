package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type SubscribeRequest struct {
	DealID     snowflake.ID
	ReferrerID snowflake.ID
}

type ListSubscribersRequest struct {
	BusinessID snowflake.ID
	DealID     *snowflake.ID
}

type Service interface {
	Subscribe(context.Context, SubscribeRequest) (SubscriptionView, error)
	Unsubscribe(context.Context, SubscribeRequest) (SubscriptionView, error)
	// GetSubscription returns nil when the pair has never subscribed.
	GetSubscription(ctx context.Context, dealID, referrerID snowflake.ID) (*Subscription, error)
	ListForReferrer(ctx context.Context, referrerID snowflake.ID, onlyActive bool) ([]SubscriptionView, error)
	ListSubscribersForBusiness(context.Context, ListSubscribersRequest) ([]SubscriberView, error)
	IsSubscribed(ctx context.Context, dealID, referrerID snowflake.ID) (bool, error)
}

var (
	ErrInvalidDeal     = errors.New("invalid_deal")
	ErrInvalidReferrer = errors.New("invalid_referrer")
	ErrInvalidBusiness = errors.New("invalid_business")
	ErrNotFound        = errors.New("not_found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
)

// PairLocker serializes subscribe and unsubscribe for one (deal, referrer) pair.
type PairLocker interface {
	Lock(ctx context.Context, dealID, referrerID snowflake.ID) (unlock func(), err error)
}
