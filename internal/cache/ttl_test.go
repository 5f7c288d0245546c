package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now }, 10)

	c.Set("a", 1, time.Second)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheSweepsWhenFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now }, 2)

	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Minute)
	now = now.Add(2 * time.Second)
	c.Set("c", 3, time.Minute)
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = c.Get("b")
	assert.True(t, ok, "only expired entries are swept")
}

func TestTTLCacheEvictsSoonestWhenFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now }, 2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Hour)
	c.Set("c", 3, time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "entry closest to expiry is evicted")
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestReferralCodeCacheInvalidate(t *testing.T) {
	c := NewReferralCodeCache()
	sub := subscriptiondomain.Subscription{ID: snowflake.ID(7), ReferralCode: "AbC"}

	c.SetSubscription("AbC", sub, 0)
	_, ok := c.GetSubscription("abc")
	assert.False(t, ok, "codes are case-sensitive")

	got, ok := c.GetSubscription("AbC")
	require.True(t, ok)
	assert.Equal(t, sub.ID, got.ID)

	c.Invalidate("AbC")
	_, ok = c.GetSubscription("AbC")
	assert.False(t, ok)
}
