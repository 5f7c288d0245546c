package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
)

// LinkBuilder derives shareable URLs. It never touches the store.
type LinkBuilder interface {
	Build(dealID snowflake.ID, code string) string
	BuildReferralLink(sub subscriptiondomain.Subscription) string
}

type Resolver interface {
	// Resolve maps a code to its subscription regardless of its active state.
	Resolve(ctx context.Context, code string) (subscriptiondomain.Subscription, error)
	// ResolveForVisitor is the public landing-page lookup. Inactive
	// subscriptions and deals resolve to ErrNotFound.
	ResolveForVisitor(ctx context.Context, code string) (VisitorView, error)
	Invalidate(code string)
}

type VisitorView struct {
	Deal         dealdomain.Deal `json:"deal"`
	ReferralCode string          `json:"referral_code"`
	ReferralLink string          `json:"referral_link"`
}

var ErrNotFound = errors.New("not_found")
