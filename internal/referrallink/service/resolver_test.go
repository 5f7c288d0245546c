package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/config"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	dealrepository "github.com/smallbiznis/dealshark/internal/deal/repository"
	"github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/dealshark/internal/subscription/repository"
	"github.com/smallbiznis/dealshark/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type countingRepo struct {
	subscriptiondomain.Repository
	lookups atomic.Int64
}

func (c *countingRepo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*subscriptiondomain.Subscription, error) {
	c.lookups.Add(1)
	return c.Repository.FindByCode(ctx, db, code)
}

type resolverFixture struct {
	db       *gorm.DB
	repo     *countingRepo
	dealRepo dealdomain.Repository
	resolver domain.Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	db := testutil.NewDB(t, &dealdomain.Deal{}, &subscriptiondomain.Subscription{})
	cfg := config.NewStaticReferralConfigHolder(config.DefaultReferralConfig())
	repo := &countingRepo{Repository: subscriptionrepository.Provide()}
	dealRepo := dealrepository.Provide()

	resolver := NewResolver(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repo,
		DealRepo: dealRepo,
		Cache:    cache.NewReferralCodeCache(),
		Links:    NewLinkBuilder(cfg),
		Config:   cfg,
	})
	return &resolverFixture{db: db, repo: repo, dealRepo: dealRepo, resolver: resolver}
}

func (f *resolverFixture) seed(t *testing.T, dealActive, subActive bool) subscriptiondomain.Subscription {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	deal := dealdomain.Deal{
		ID:          42,
		BusinessID:  900,
		Name:        "Deal",
		Description: "desc",
		IsActive:    dealActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	deal.SetReward(dealdomain.CommissionReward{Percent: decimal.NewFromInt(10)})
	require.NoError(t, f.dealRepo.Insert(ctx, f.db, &deal))

	code, err := domain.NewCode()
	require.NoError(t, err)
	sub := subscriptiondomain.Subscription{
		ID:             snowflake.ID(1),
		DealID:         deal.ID,
		ReferrerUserID: 7,
		ReferralCode:   code,
		IsActive:       subActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.repo.Insert(ctx, f.db, &sub))
	return sub
}

func TestResolveCachesLookups(t *testing.T) {
	f := newResolverFixture(t)
	sub := f.seed(t, true, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := f.resolver.Resolve(ctx, sub.ReferralCode)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	}
	assert.Equal(t, int64(1), f.repo.lookups.Load())

	f.resolver.Invalidate(sub.ReferralCode)
	_, err := f.resolver.Resolve(ctx, sub.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.repo.lookups.Load())
}

func TestResolveRejectsMalformedWithoutLookup(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	for _, code := range []string{"", "abc", "' OR 1=1 --", "AAAAAAAAAAAAAAAAAAAAA="} {
		_, err := f.resolver.Resolve(ctx, code)
		assert.ErrorIs(t, err, domain.ErrNotFound, code)
	}
	assert.Zero(t, f.repo.lookups.Load())

	_, err := f.resolver.Resolve(ctx, "AAAAAAAAAAAAAAAAAAAAAA")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(1), f.repo.lookups.Load())
}

func TestResolveIsCaseSensitive(t *testing.T) {
	f := newResolverFixture(t)
	sub := f.seed(t, true, true)

	flipped := []byte(sub.ReferralCode)
	for i, c := range flipped {
		switch {
		case c >= 'a' && c <= 'z':
			flipped[i] = c - 32
		case c >= 'A' && c <= 'Z':
			flipped[i] = c + 32
		}
	}
	if string(flipped) == sub.ReferralCode {
		t.Skip("code has no letters")
	}
	_, err := f.resolver.Resolve(context.Background(), string(flipped))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveForVisitor(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		f := newResolverFixture(t)
		sub := f.seed(t, true, true)

		view, err := f.resolver.ResolveForVisitor(context.Background(), sub.ReferralCode)
		require.NoError(t, err)
		assert.Equal(t, snowflake.ID(42), view.Deal.ID)
		assert.Equal(t, sub.ReferralCode, view.ReferralCode)
		assert.Equal(t, "https://dealshark.com/deal/42?ref="+sub.ReferralCode, view.ReferralLink)
	})

	t.Run("inactive subscription", func(t *testing.T) {
		f := newResolverFixture(t)
		sub := f.seed(t, true, false)

		_, err := f.resolver.ResolveForVisitor(context.Background(), sub.ReferralCode)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		got, err := f.resolver.Resolve(context.Background(), sub.ReferralCode)
		require.NoError(t, err, "plain resolve ignores active state")
		assert.False(t, got.IsActive)
	})

	t.Run("inactive deal", func(t *testing.T) {
		f := newResolverFixture(t)
		sub := f.seed(t, false, true)

		_, err := f.resolver.ResolveForVisitor(context.Background(), sub.ReferralCode)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestLinkBuilder(t *testing.T) {
	cfg := config.DefaultReferralConfig()
	cfg.LinkBaseURL = "https://share.example.com/"
	links := NewLinkBuilder(config.NewStaticReferralConfigHolder(cfg))

	assert.Equal(t, "https://share.example.com/deal/42?ref=abc_-DEF", links.Build(42, "abc_-DEF"))
	assert.Equal(t, "https://share.example.com/deal/9?ref=xyz",
		links.BuildReferralLink(subscriptiondomain.Subscription{DealID: 9, ReferralCode: "xyz"}))
}
