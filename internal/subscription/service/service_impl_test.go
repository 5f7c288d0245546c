package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/config"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	dealrepository "github.com/smallbiznis/dealshark/internal/deal/repository"
	"github.com/smallbiznis/dealshark/internal/events"
	"github.com/smallbiznis/dealshark/internal/ratelimit"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	referrallinkservice "github.com/smallbiznis/dealshark/internal/referrallink/service"
	"github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/smallbiznis/dealshark/internal/subscription/repository"
	"github.com/smallbiznis/dealshark/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	repo     domain.Repository
	dealRepo dealdomain.Repository
	resolver referrallinkdomain.Resolver
	events   *events.MemoryPublisher
	svc      domain.Service
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()

	db := testutil.NewDB(t, &dealdomain.Deal{}, &domain.Subscription{})
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.NewStaticReferralConfigHolder(config.DefaultReferralConfig())
	dealRepo := dealrepository.Provide()
	links := referrallinkservice.NewLinkBuilder(cfg)
	resolver := referrallinkservice.NewResolver(referrallinkservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repo,
		DealRepo: dealRepo,
		Cache:    cache.NewReferralCodeCache(),
		Links:    links,
		Config:   cfg,
	})
	pub := events.NewMemoryPublisher()

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repo,
		DealRepo: dealRepo,
		Locker:   ratelimit.NewLocalPairLocker(),
		Links:    links,
		Resolver: resolver,
		Events:   pub,
	})

	return &fixture{
		db:       db,
		node:     node,
		clock:    clk,
		repo:     repo,
		dealRepo: dealRepo,
		resolver: resolver,
		events:   pub,
		svc:      svc,
	}
}

func (f *fixture) createDeal(t *testing.T, id, businessID snowflake.ID) dealdomain.Deal {
	t.Helper()
	now := f.clock.Now()
	deal := dealdomain.Deal{
		ID:          id,
		BusinessID:  businessID,
		Name:        "Deal " + id.String(),
		Description: "desc",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	deal.SetReward(dealdomain.CommissionReward{Percent: decimal.NewFromInt(10)})
	require.NoError(t, f.dealRepo.Insert(context.Background(), f.db, &deal))
	return deal
}

func (f *fixture) subscribersCount(t *testing.T, dealID snowflake.ID) int64 {
	t.Helper()
	deal, err := f.dealRepo.FindByID(context.Background(), f.db, dealID)
	require.NoError(t, err)
	require.NotNil(t, deal)
	return deal.SubscribersCount
}

func TestSubscribeIssuesCodeAndLink(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))

	view, err := f.svc.Subscribe(context.Background(), domain.SubscribeRequest{DealID: 42, ReferrerID: 7})
	require.NoError(t, err)

	code := view.Subscription.ReferralCode
	assert.Len(t, code, referrallinkdomain.CodeLength)
	assert.True(t, referrallinkdomain.ValidCode(code))
	assert.True(t, view.Subscription.IsActive)
	assert.Equal(t, "https://dealshark.com/deal/42?ref="+code, view.ReferralLink)
	assert.Equal(t, int64(1), view.Deal.SubscribersCount)
	assert.Equal(t, int64(1), f.subscribersCount(t, 42))
	assert.False(t, view.Reactivated)
	assert.Equal(t, []string{events.SubscriptionSubscribed}, f.events.Types())
}

func TestSubscribeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	first, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, first.Subscription.ReferralCode, second.Subscription.ReferralCode)
	assert.Equal(t, first.ReferralLink, second.ReferralLink)
	assert.Equal(t, int64(1), f.subscribersCount(t, 42))
	assert.Len(t, f.events.Events(), 1)
}

func TestUnsubscribeAndReactivateKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	first, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	off, err := f.svc.Unsubscribe(ctx, req)
	require.NoError(t, err)
	assert.False(t, off.Subscription.IsActive)
	require.NotNil(t, off.Subscription.UnsubscribedAt)
	assert.Equal(t, first.Subscription.ReferralCode, off.Subscription.ReferralCode)
	assert.Equal(t, int64(0), off.Deal.SubscribersCount)
	assert.Equal(t, int64(0), f.subscribersCount(t, 42))

	stored, err := f.svc.GetSubscription(ctx, 42, 7)
	require.NoError(t, err)
	require.NotNil(t, stored, "unsubscribe never deletes the row")
	assert.False(t, stored.IsActive)

	f.clock.Advance(time.Hour)
	again, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Reactivated)
	assert.True(t, again.Subscription.IsActive)
	assert.Equal(t, first.Subscription.ID, again.Subscription.ID)
	assert.Equal(t, first.Subscription.ReferralCode, again.Subscription.ReferralCode)
	assert.Equal(t, first.ReferralLink, again.ReferralLink)
	require.NotNil(t, again.Subscription.ReactivatedAt)
	assert.Equal(t, int64(1), f.subscribersCount(t, 42))

	assert.Equal(t, []string{
		events.SubscriptionSubscribed,
		events.SubscriptionUnsubscribed,
		events.SubscriptionSubscribed,
	}, f.events.Types())
	assert.Equal(t, true, f.events.Events()[2].Payload["reactivated"])
}

func TestUnsubscribeRequiresActiveSubscription(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	_, err := f.svc.Unsubscribe(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Subscribe(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Unsubscribe(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Unsubscribe(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(0), f.subscribersCount(t, 42))
}

func TestSubscribeRejectsUnknownOrInactiveDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 1, ReferrerID: 7})
	assert.ErrorIs(t, err, dealdomain.ErrNotFound)

	deal := f.createDeal(t, snowflake.ID(2), snowflake.ID(900))
	require.NoError(t, f.dealRepo.SetActive(ctx, f.db, deal.ID, false, f.clock.Now()))
	_, err = f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: deal.ID, ReferrerID: 7})
	assert.ErrorIs(t, err, dealdomain.ErrDealInactive)

	_, err = f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 0, ReferrerID: 7})
	assert.ErrorIs(t, err, domain.ErrInvalidDeal)
	_, err = f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 2, ReferrerID: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidReferrer)
}

func TestConcurrentSubscribeMintsOneSubscription(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()

	const callers = 16
	codes := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 42, ReferrerID: 7})
			errs[i] = err
			codes[i] = view.Subscription.ReferralCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, codes[0], codes[i])
	}

	var rows int64
	require.NoError(t, f.db.Model(&domain.Subscription{}).Where("deal_id = ? AND referrer_user_id = ?", 42, 7).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, int64(1), f.subscribersCount(t, 42))
}

func TestConcurrentToggleKeepsAtMostOneActive(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.svc.Subscribe(ctx, req)
				return
			}
			_, _ = f.svc.Unsubscribe(ctx, req)
		}(i)
	}
	wg.Wait()

	var active int64
	require.NoError(t, f.db.Model(&domain.Subscription{}).Where("deal_id = ? AND is_active = ?", 42, true).Count(&active).Error)
	assert.LessOrEqual(t, active, int64(1))
	assert.Equal(t, active, f.subscribersCount(t, 42))
}

// racingRepo hides the existing row from the locked read, as a concurrent
// writer on another replica without the pair lock would.
type racingRepo struct {
	domain.Repository
}

func (r racingRepo) FindByPairForUpdate(ctx context.Context, db *gorm.DB, dealID, referrerID snowflake.ID) (*domain.Subscription, error) {
	return nil, nil
}

func TestSubscribeSurfacesUniqueViolationAsConflict(t *testing.T) {
	f := newFixtureWithRepo(t, racingRepo{Repository: repository.Provide()})
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	_, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Subscribe(ctx, req)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(1), f.subscribersCount(t, 42), "failed insert rolls back the counter")
}

func TestListForReferrerAndBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	business := snowflake.ID(900)
	f.createDeal(t, snowflake.ID(1), business)
	f.createDeal(t, snowflake.ID(2), business)
	f.createDeal(t, snowflake.ID(3), snowflake.ID(901))

	for _, dealID := range []snowflake.ID{1, 2, 3} {
		_, err := f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: dealID, ReferrerID: 7})
		require.NoError(t, err)
	}
	_, err := f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 1, ReferrerID: 8})
	require.NoError(t, err)
	_, err = f.svc.Unsubscribe(ctx, domain.SubscribeRequest{DealID: 2, ReferrerID: 7})
	require.NoError(t, err)

	all, err := f.svc.ListForReferrer(ctx, 7, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, view := range all {
		assert.Equal(t, view.Subscription.DealID, view.Deal.ID)
		assert.NotEmpty(t, view.ReferralLink)
	}

	active, err := f.svc.ListForReferrer(ctx, 7, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	subscribers, err := f.svc.ListSubscribersForBusiness(ctx, domain.ListSubscribersRequest{BusinessID: business})
	require.NoError(t, err)
	assert.Len(t, subscribers, 3)

	dealID := snowflake.ID(1)
	filtered, err := f.svc.ListSubscribersForBusiness(ctx, domain.ListSubscribersRequest{BusinessID: business, DealID: &dealID})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
	for _, row := range filtered {
		assert.Equal(t, dealID, row.DealID)
		assert.Equal(t, "Deal 1", row.DealName)
	}

	foreign := snowflake.ID(3)
	_, err = f.svc.ListSubscribersForBusiness(ctx, domain.ListSubscribersRequest{BusinessID: business, DealID: &foreign})
	assert.ErrorIs(t, err, dealdomain.ErrNotFound)
}

func TestIsSubscribed(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()

	ok, err := f.svc.IsSubscribed(ctx, 42, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Subscribe(ctx, domain.SubscribeRequest{DealID: 42, ReferrerID: 7})
	require.NoError(t, err)
	ok, err = f.svc.IsSubscribed(ctx, 42, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Unsubscribe(ctx, domain.SubscribeRequest{DealID: 42, ReferrerID: 7})
	require.NoError(t, err)
	ok, err = f.svc.IsSubscribed(ctx, 42, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnsubscribeInvalidatesResolverCache(t *testing.T) {
	f := newFixture(t)
	f.createDeal(t, snowflake.ID(42), snowflake.ID(900))
	ctx := context.Background()
	req := domain.SubscribeRequest{DealID: 42, ReferrerID: 7}

	view, err := f.svc.Subscribe(ctx, req)
	require.NoError(t, err)

	cached, err := f.resolver.Resolve(ctx, view.Subscription.ReferralCode)
	require.NoError(t, err)
	assert.True(t, cached.IsActive)

	_, err = f.svc.Unsubscribe(ctx, req)
	require.NoError(t, err)

	fresh, err := f.resolver.Resolve(ctx, view.Subscription.ReferralCode)
	require.NoError(t, err)
	assert.False(t, fresh.IsActive)
}
