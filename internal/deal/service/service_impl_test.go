package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/internal/actorcontext"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	auditrepository "github.com/smallbiznis/dealshark/internal/audit/repository"
	auditservice "github.com/smallbiznis/dealshark/internal/audit/service"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/deal/repository"
	"github.com/smallbiznis/dealshark/internal/events"
	referrallinkservice "github.com/smallbiznis/dealshark/internal/referrallink/service"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/dealshark/internal/subscription/repository"
	"github.com/smallbiznis/dealshark/internal/testutil"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	subRepo subscriptiondomain.Repository
	events  *events.MemoryPublisher
	svc     domain.Service
}

func newFixture(t *testing.T, cfg config.ReferralConfig) *fixture {
	t.Helper()

	db := testutil.NewDB(t, &domain.Deal{}, &subscriptiondomain.Subscription{}, &auditdomain.AuditLog{})
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	holder := config.NewStaticReferralConfigHolder(cfg)
	subRepo := subscriptionrepository.Provide()
	pub := events.NewMemoryPublisher()

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		SubRepo:  subRepo,
		Links:    referrallinkservice.NewLinkBuilder(holder),
		Config:   holder,
		AuditSvc: audit,
		Events:   pub,
	})

	return &fixture{db: db, node: node, clock: clk, subRepo: subRepo, events: pub, svc: svc}
}

func commission(pct string) domain.Reward {
	return domain.CommissionReward{Percent: decimal.RequireFromString(pct)}
}

func (f *fixture) create(t *testing.T, businessID snowflake.ID, name string, reward domain.Reward) domain.Deal {
	t.Helper()
	return f.createWithDescription(t, businessID, name, "All about "+name, reward)
}

func (f *fixture) createWithDescription(t *testing.T, businessID snowflake.ID, name, description string, reward domain.Reward) domain.Deal {
	t.Helper()
	deal, err := f.svc.Create(context.Background(), domain.CreateDealRequest{
		BusinessID:   businessID,
		BusinessName: "Shark Cafe",
		Industry:     "Food",
		Name:         name,
		Description:  description,
		Reward:       reward,
	})
	require.NoError(t, err)
	return deal
}

func TestCreateDeal(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())

	deal := f.create(t, 900, "Summer Latte Deal", commission("10"))

	assert.NotZero(t, deal.ID)
	assert.Equal(t, "summer-latte-deal", deal.Slug)
	assert.True(t, deal.IsActive)
	assert.Equal(t, domain.RewardTypeCommission, deal.RewardType)
	assert.Equal(t, []string{events.DealCreated}, f.events.Types())

	view, err := f.svc.Get(context.Background(), domain.GetDealRequest{ID: deal.ID})
	require.NoError(t, err)
	assert.Equal(t, "Summer Latte Deal", view.Name)
	assert.Equal(t, "Shark Cafe", view.BusinessName)
	assert.True(t, view.CustomerIncentive.Valid)
	assert.True(t, decimal.NewFromInt(10).Equal(view.CustomerIncentive.Decimal))
	assert.Nil(t, view.SubscriptionInfo)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "deal.created").Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].TargetID)
	assert.Equal(t, deal.ID.String(), *logs[0].TargetID)
}

func TestCreateDealValidation(t *testing.T) {
	cfg := config.DefaultReferralConfig()
	cfg.MaxIncentivePercent = 30
	f := newFixture(t, cfg)
	ctx := context.Background()

	base := domain.CreateDealRequest{BusinessID: 900, Name: "Deal", Description: "desc", Reward: commission("10")}

	cases := []struct {
		name string
		mut  func(*domain.CreateDealRequest)
		err  error
	}{
		{"missing business", func(r *domain.CreateDealRequest) { r.BusinessID = 0 }, domain.ErrInvalidBusiness},
		{"blank name", func(r *domain.CreateDealRequest) { r.Name = "  " }, domain.ErrInvalidName},
		{"long name", func(r *domain.CreateDealRequest) { r.Name = string(make([]byte, domain.MaxNameLength+1)) }, domain.ErrInvalidName},
		{"blank description", func(r *domain.CreateDealRequest) { r.Description = "" }, domain.ErrInvalidDescription},
		{"no reward", func(r *domain.CreateDealRequest) { r.Reward = nil }, domain.ErrInvalidRewardType},
		{"incentive above config", func(r *domain.CreateDealRequest) { r.Reward = commission("30.01") }, domain.ErrInvalidIncentive},
		{"unknown reason", func(r *domain.CreateDealRequest) { r.Reward = domain.NoReward{Reason: "nope"} }, domain.ErrInvalidNoRewardReason},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mut(&req)
			_, err := f.svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
	assert.Empty(t, f.events.Events())
}

func TestGetDealEmbedsViewerSubscription(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())
	ctx := context.Background()
	deal := f.create(t, 900, "Deal", commission("10"))

	now := f.clock.Now()
	sub := subscriptiondomain.Subscription{
		ID:             f.node.Generate(),
		DealID:         deal.ID,
		ReferrerUserID: 7,
		ReferralCode:   "AAAAAAAAAAAAAAAAAAAAAA",
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.subRepo.Insert(ctx, f.db, &sub))

	viewer := snowflake.ID(7)
	view, err := f.svc.Get(ctx, domain.GetDealRequest{ID: deal.ID, ViewerID: &viewer})
	require.NoError(t, err)
	require.NotNil(t, view.SubscriptionInfo)
	assert.Equal(t, sub.ID, view.SubscriptionInfo.SubscriptionID)
	assert.False(t, view.SubscriptionInfo.IsActive, "inactive state is exposed so callers can offer resubscribe")
	assert.Equal(t, "https://dealshark.com/deal/"+deal.ID.String()+"?ref=AAAAAAAAAAAAAAAAAAAAAA", view.SubscriptionInfo.ReferralLink)

	stranger := snowflake.ID(8)
	view, err = f.svc.Get(ctx, domain.GetDealRequest{ID: deal.ID, ViewerID: &stranger})
	require.NoError(t, err)
	assert.Nil(t, view.SubscriptionInfo)

	_, err = f.svc.Get(ctx, domain.GetDealRequest{ID: 12345})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListDealsFiltersAndPaginates(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())
	ctx := context.Background()

	a := f.create(t, 900, "Coffee 50% Off", commission("5"))
	b := f.create(t, 900, "Tea Time", commission("20"))
	c := f.createWithDescription(t, 901, "Bakery Bonus", "Fresh croissants every morning", domain.NoReward{Reason: domain.ReasonHighDemand})
	_, err := f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: b.ID, BusinessID: 900})
	require.NoError(t, err)

	resp, err := f.svc.List(ctx, domain.ListDealRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Deals, 2)
	assert.Equal(t, a.ID, resp.Deals[0].ID, "insertion order")
	assert.Equal(t, c.ID, resp.Deals[1].ID)

	resp, err = f.svc.List(ctx, domain.ListDealRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, resp.Deals, 3)

	resp, err = f.svc.List(ctx, domain.ListDealRequest{Search: "COFFEE"})
	require.NoError(t, err)
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, a.ID, resp.Deals[0].ID)

	resp, err = f.svc.List(ctx, domain.ListDealRequest{Search: "Croissant"})
	require.NoError(t, err)
	require.Len(t, resp.Deals, 1, "description is searched")
	assert.Equal(t, c.ID, resp.Deals[0].ID)

	resp, err = f.svc.List(ctx, domain.ListDealRequest{Search: "50%"})
	require.NoError(t, err)
	assert.Len(t, resp.Deals, 1, "wildcards in search are literal")

	resp, err = f.svc.List(ctx, domain.ListDealRequest{Search: "shark"})
	require.NoError(t, err)
	assert.Len(t, resp.Deals, 2, "business name is searched")

	resp, err = f.svc.List(ctx, domain.ListDealRequest{RewardType: "no_reward"})
	require.NoError(t, err)
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, c.ID, resp.Deals[0].ID)

	minIncentive := decimal.NewFromInt(10)
	resp, err = f.svc.List(ctx, domain.ListDealRequest{MinIncentive: &minIncentive, IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, resp.Deals, 1)
	assert.Equal(t, b.ID, resp.Deals[0].ID)

	_, err = f.svc.List(ctx, domain.ListDealRequest{RewardType: "cashback"})
	assert.ErrorIs(t, err, domain.ErrInvalidRewardType)

	page, err := f.svc.List(ctx, domain.ListDealRequest{PageSize: 1, IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, page.Deals, 1)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextPageToken)

	next, err := f.svc.List(ctx, domain.ListDealRequest{PageSize: 1, IncludeInactive: true, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.Deals, 1)
	assert.Equal(t, b.ID, next.Deals[0].ID)

	_, err = f.svc.List(ctx, domain.ListDealRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestDeactivateDeal(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())
	ctx := actorcontext.WithActor(context.Background(), actorcontext.Actor{Type: actorcontext.TypeBusiness, ID: 900})
	deal := f.create(t, 900, "Deal", commission("10"))

	_, err := f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: deal.ID, BusinessID: 901})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: 999, BusinessID: 900})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	off, err := f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: deal.ID, BusinessID: 900})
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	again, err := f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: deal.ID, BusinessID: 900})
	require.NoError(t, err)
	assert.False(t, again.IsActive)

	assert.Equal(t, []string{events.DealCreated, events.DealDeactivated}, f.events.Types())

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "deal.deactivated").Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, "900", *logs[0].ActorID)
}

func TestTrendingAndBusinessDeals(t *testing.T) {
	cfg := config.DefaultReferralConfig()
	cfg.TrendingLimit = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	a := f.create(t, 900, "A", commission("10"))
	b := f.create(t, 900, "B", commission("10"))
	c := f.create(t, 901, "C", commission("10"))
	dealRepo := repository.Provide()
	require.NoError(t, dealRepo.AdjustSubscribers(ctx, f.db, b.ID, 5, f.clock.Now()))
	require.NoError(t, dealRepo.AdjustSubscribers(ctx, f.db, c.ID, 3, f.clock.Now()))
	require.NoError(t, dealRepo.AdjustSubscribers(ctx, f.db, a.ID, -4, f.clock.Now()))

	trending, err := f.svc.Trending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, b.ID, trending[0].ID)
	assert.Equal(t, c.ID, trending[1].ID)

	stored, err := dealRepo.FindByID(ctx, f.db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.SubscribersCount, "counter never goes negative")

	_, err = f.svc.Deactivate(ctx, domain.DeactivateDealRequest{DealID: a.ID, BusinessID: 900})
	require.NoError(t, err)

	own, err := f.svc.ListByBusiness(ctx, 900, true)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	public, err := f.svc.ListByBusiness(ctx, 900, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, b.ID, public[0].ID)
}

func TestTrendingClampsLargeLimit(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())
	ctx := context.Background()

	total := pagination.DefaultPageSize + 5
	for i := 0; i < total; i++ {
		f.create(t, 900, fmt.Sprintf("Deal %d", i), commission("10"))
	}

	capped, err := f.svc.Trending(ctx, pagination.MaxPageSize)
	require.NoError(t, err)
	assert.Len(t, capped, total)

	over, err := f.svc.Trending(ctx, pagination.MaxPageSize+50)
	require.NoError(t, err)
	assert.Len(t, over, total, "a limit above the cap behaves like the cap")
}

func TestPosterOptions(t *testing.T) {
	f := newFixture(t, config.DefaultReferralConfig())
	opts := f.svc.PosterOptions()

	assert.Len(t, opts.RewardTypes, 2)
	assert.Len(t, opts.NoRewardReasons, 5)
	for _, opt := range opts.NoRewardReasons {
		_, err := domain.ParseNoRewardReason(opt.Value)
		assert.NoError(t, err)
	}
}

