package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dealshark/internal/config"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"go.uber.org/zap"
)

const keySubscriptionPairLock = "referral:subscription:lock:%s:%s"

const (
	defaultPairLockTTL  = 10 * time.Second
	defaultPairLockWait = 5 * time.Second
)

// PairLocker serializes subscription changes per (deal, referrer). With redis
// it holds a SETNX lock across replicas; otherwise a keyed in-process mutex.
type PairLocker struct {
	locker *Locker
	local  *keyedMutex
	ttl    time.Duration
	wait   time.Duration
	log    *zap.Logger
}

func NewPairLocker(cfg config.Config, client redis.UniversalClient, log *zap.Logger) *PairLocker {
	ttl := time.Duration(cfg.RateLimit.PairLockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultPairLockTTL
	}
	wait := time.Duration(cfg.RateLimit.PairLockWaitSeconds) * time.Second
	if wait <= 0 {
		wait = defaultPairLockWait
	}
	return &PairLocker{
		locker: NewLocker(client),
		local:  newKeyedMutex(),
		ttl:    ttl,
		wait:   wait,
		log:    log.Named("ratelimit.pair_lock"),
	}
}

// NewLocalPairLocker is the in-process variant.
func NewLocalPairLocker() *PairLocker {
	return &PairLocker{
		local: newKeyedMutex(),
		ttl:   defaultPairLockTTL,
		wait:  defaultPairLockWait,
		log:   zap.NewNop(),
	}
}

// AsSubscriptionLocker exposes the locker to the subscription ledger.
func AsSubscriptionLocker(l *PairLocker) subscriptiondomain.PairLocker {
	return l
}

func (p *PairLocker) Lock(ctx context.Context, dealID, referrerID snowflake.ID) (func(), error) {
	key := fmt.Sprintf(keySubscriptionPairLock, dealID.String(), referrerID.String())

	if p.locker != nil {
		token, err := p.locker.Acquire(ctx, key, p.ttl, p.wait)
		switch {
		case err == nil:
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := p.locker.Release(releaseCtx, key, token); err != nil {
					p.log.Warn("pair lock release failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		case errors.Is(err, ErrLockTimeout):
			return nil, subscriptiondomain.ErrConflict
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Row locks and the unique index still hold without redis.
			p.log.Warn("pair lock unavailable, using local lock", zap.String("key", key), zap.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()
	unlock, err := p.local.lock(waitCtx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, subscriptiondomain.ErrConflict
	}
	return unlock, nil
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			k.release(key, entry)
		})
	}, nil
}

func (k *keyedMutex) release(key string, entry *keyedEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
