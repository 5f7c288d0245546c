package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/config"
	"golang.org/x/time/rate"
)

const keyReferralResolveClient = "referral:resolve:client:%s"

const localLimiterIdleTTL = 10 * time.Minute

// ResolveLimiter throttles public referral-code lookups per client.
type ResolveLimiter struct {
	enabled bool
	bucket  *TokenBucket
	policy  Policy

	mu    sync.Mutex
	local cache.Cache[string, *rate.Limiter]
}

func NewResolveLimiter(cfg config.Config, client redis.UniversalClient) *ResolveLimiter {
	limitCfg := cfg.RateLimit
	l := &ResolveLimiter{
		bucket: NewTokenBucket(client),
		policy: Policy{Rate: limitCfg.ResolveRate, Burst: limitCfg.ResolveBurst},
		local:  cache.NewTTLCache[string, *rate.Limiter](),
	}
	l.enabled = limitCfg.Enabled && l.policy.valid()
	return l
}

func (l *ResolveLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *ResolveLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}

	if l.bucket != nil {
		return l.bucket.Take(ctx, fmt.Sprintf(keyReferralResolveClient, clientKey), l.policy)
	}

	limiter := l.localLimiter(clientKey)
	if limiter.Allow() {
		return &RateLimitResult{
			Allowed:   true,
			Limit:     l.policy.Burst,
			Remaining: int(limiter.Tokens()),
		}, nil
	}
	return &RateLimitResult{
		Allowed:    false,
		Limit:      l.policy.Burst,
		RetryAfter: l.policy.retryAfter(limiter.Tokens()),
	}, nil
}

func (l *ResolveLimiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.local.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.policy.Rate), l.policy.Burst)
	}
	l.local.Set(key, limiter, localLimiterIdleTTL)
	return limiter
}
