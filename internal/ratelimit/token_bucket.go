package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

// Policy is a refill rate in tokens per second and a bucket capacity.
type Policy struct {
	Rate  float64
	Burst int
}

func (p Policy) valid() bool {
	return p.Rate > 0 && p.Burst > 0
}

// ttl keeps idle buckets for twice the time a full refill takes.
func (p Policy) ttl() time.Duration {
	if !p.valid() {
		return time.Second
	}
	return time.Duration(max(math.Ceil(float64(p.Burst)/p.Rate*2), 1)) * time.Second
}

// retryAfter is the wait until one whole token is available again.
func (p Policy) retryAfter(remaining float64) time.Duration {
	if p.Rate <= 0 || remaining >= 1 {
		return 0
	}
	return time.Duration((1 - remaining) / p.Rate * float64(time.Second))
}

// TokenBucket is a Redis-backed bucket shared by every replica.
type TokenBucket struct {
	client redis.UniversalClient
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

var errBucketUnavailable = errors.New("rate limiter not configured")

func NewTokenBucket(client redis.UniversalClient) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Take(ctx context.Context, key string, policy Policy) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return &RateLimitResult{}, errBucketUnavailable
	}
	if key == "" || !policy.valid() {
		return &RateLimitResult{}, fmt.Errorf("invalid bucket %q rate=%v burst=%d", key, policy.Rate, policy.Burst)
	}

	reply, err := t.script.Run(ctx, t.client, []string{key},
		policy.Rate, policy.Burst, policy.ttl().Milliseconds(),
	).Slice()
	if err != nil {
		return &RateLimitResult{}, err
	}
	allowed, remaining, err := parseReply(reply)
	if err != nil {
		return &RateLimitResult{}, err
	}

	result := &RateLimitResult{
		Allowed:   allowed,
		Limit:     policy.Burst,
		Remaining: int(remaining),
	}
	if !allowed {
		result.RetryAfter = policy.retryAfter(remaining)
	}
	return result, nil
}

// parseReply decodes {allowed, tokens, ts}. Tokens arrive as a string because
// Lua truncates numbers to integers on return.
func parseReply(reply []interface{}) (bool, float64, error) {
	if len(reply) < 3 {
		return false, 0, errors.New("invalid rate limit script response")
	}
	flag, ok := reply[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected allowed flag %T", reply[0])
	}
	var remaining float64
	switch v := reply[1].(type) {
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, 0, fmt.Errorf("parse remaining tokens: %w", err)
		}
		remaining = parsed
	case int64:
		remaining = float64(v)
	default:
		return false, 0, fmt.Errorf("unexpected tokens %T", reply[1])
	}
	return flag == 1, remaining, nil
}
