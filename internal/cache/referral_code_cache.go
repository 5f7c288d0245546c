package cache

import (
	"strings"
	"time"

	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
)

const defaultReferralCodeTTL = 30 * time.Second

// ReferralCodeCache stores resolver lookups keyed by referral code.
type ReferralCodeCache interface {
	GetSubscription(code string) (subscriptiondomain.Subscription, bool)
	SetSubscription(code string, sub subscriptiondomain.Subscription, ttl time.Duration)
	Invalidate(code string)
}

type referralCodeCache struct {
	subscriptions Cache[string, subscriptiondomain.Subscription]
}

func NewReferralCodeCache() ReferralCodeCache {
	return &referralCodeCache{
		subscriptions: NewTTLCache[string, subscriptiondomain.Subscription](),
	}
}

func (c *referralCodeCache) GetSubscription(code string) (subscriptiondomain.Subscription, bool) {
	return c.subscriptions.Get(cacheKey(code))
}

// SetSubscription falls back to the default TTL when ttl is not positive.
func (c *referralCodeCache) SetSubscription(code string, sub subscriptiondomain.Subscription, ttl time.Duration) {
	if sub.ID == 0 {
		return
	}
	if ttl <= 0 {
		ttl = defaultReferralCodeTTL
	}
	c.subscriptions.Set(cacheKey(code), sub, ttl)
}

func (c *referralCodeCache) Invalidate(code string) {
	c.subscriptions.Delete(cacheKey(code))
}

// cacheKey trims only. Codes are case-sensitive.
func cacheKey(code string) string {
	return strings.TrimSpace(code)
}
