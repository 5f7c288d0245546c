package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/config"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPairLockerSerializesSamePair(t *testing.T) {
	locker := NewLocalPairLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, snowflake.ID(42), snowflake.ID(7))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locker.local.size(), "entries are dropped once released")
}

func TestPairLockerDistinctPairsDoNotBlock(t *testing.T) {
	locker := NewLocalPairLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, snowflake.ID(1), snowflake.ID(7))
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, snowflake.ID(2), snowflake.ID(7))
	require.NoError(t, err)
	unlockB()
}

func TestPairLockerWaitTimeoutIsConflict(t *testing.T) {
	locker := NewLocalPairLocker()
	locker.wait = 20 * time.Millisecond
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, snowflake.ID(1), snowflake.ID(2))
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(ctx, snowflake.ID(1), snowflake.ID(2))
	assert.ErrorIs(t, err, subscriptiondomain.ErrConflict)
}

func TestPairLockerUnlockIsIdempotent(t *testing.T) {
	locker := NewLocalPairLocker()
	unlock, err := locker.Lock(context.Background(), snowflake.ID(1), snowflake.ID(2))
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), snowflake.ID(1), snowflake.ID(2))
	require.NoError(t, err)
	again()
}

func TestResolveLimiterLocalBurst(t *testing.T) {
	limiter := NewResolveLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, ResolveRate: 0.001, ResolveBurst: 2},
	}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestResolveLimiterFullLocalCacheStillLimits(t *testing.T) {
	limiter := NewResolveLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, ResolveRate: 0.001, ResolveBurst: 1},
	}, nil)
	limiter.local = cache.NewTTLCacheWithLimit[string, *rate.Limiter](2)
	ctx := context.Background()

	for _, client := range []string{"10.0.0.1", "10.0.0.2"} {
		res, err := limiter.Allow(ctx, client)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	first, err := limiter.Allow(ctx, "10.0.0.3")
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := limiter.Allow(ctx, "10.0.0.3")
	require.NoError(t, err)
	assert.False(t, second.Allowed, "a new client is tracked even when the cache is full")
}

func TestResolveLimiterDisabledAllows(t *testing.T) {
	limiter := NewResolveLimiter(config.Config{}, nil)
	res, err := limiter.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestParseReply(t *testing.T) {
	allowed, remaining, err := parseReply([]interface{}{int64(1), "2.5", int64(1700000000000)})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.InDelta(t, 2.5, remaining, 0.0001)

	_, _, err = parseReply([]interface{}{int64(0)})
	assert.Error(t, err)

	_, _, err = parseReply([]interface{}{"1", "0", int64(0)})
	assert.Error(t, err)
}

func TestPolicyTimings(t *testing.T) {
	p := Policy{Rate: 1, Burst: 5}
	assert.Equal(t, 10*time.Second, p.ttl())
	assert.Equal(t, time.Duration(0), p.retryAfter(1))
	assert.Equal(t, 500*time.Millisecond, p.retryAfter(0.5))
	assert.Equal(t, time.Second, Policy{}.ttl())
}
