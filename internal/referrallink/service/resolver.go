package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/config"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     subscriptiondomain.Repository
	DealRepo dealdomain.Repository
	Cache    cache.ReferralCodeCache
	Links    domain.LinkBuilder
	Config   *config.ReferralConfigHolder
}

type Resolver struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     subscriptiondomain.Repository
	dealRepo dealdomain.Repository
	cache    cache.ReferralCodeCache
	links    domain.LinkBuilder
	cfg      *config.ReferralConfigHolder
	group    singleflight.Group
}

func NewResolver(p Params) domain.Resolver {
	return &Resolver{
		db:       p.DB,
		log:      p.Log.Named("referrallink.resolver"),
		repo:     p.Repo,
		dealRepo: p.DealRepo,
		cache:    p.Cache,
		links:    p.Links,
		cfg:      p.Config,
	}
}

func (r *Resolver) Resolve(ctx context.Context, code string) (subscriptiondomain.Subscription, error) {
	code = strings.TrimSpace(code)
	if !domain.ValidCode(code) {
		return subscriptiondomain.Subscription{}, domain.ErrNotFound
	}
	if sub, ok := r.cache.GetSubscription(code); ok {
		return sub, nil
	}

	v, err, _ := r.group.Do(code, func() (interface{}, error) {
		sub, err := r.repo.FindByCode(ctx, r.db, code)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrNotFound
		}
		r.cache.SetSubscription(code, *sub, r.cfg.Get().ResolverCacheTTL)
		return *sub, nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return v.(subscriptiondomain.Subscription), nil
}

func (r *Resolver) ResolveForVisitor(ctx context.Context, code string) (domain.VisitorView, error) {
	sub, err := r.Resolve(ctx, code)
	if err != nil {
		return domain.VisitorView{}, err
	}
	if !sub.IsActive {
		return domain.VisitorView{}, domain.ErrNotFound
	}

	deal, err := r.dealRepo.FindByID(ctx, r.db, sub.DealID)
	if err != nil {
		return domain.VisitorView{}, err
	}
	if deal == nil || !deal.IsActive {
		return domain.VisitorView{}, domain.ErrNotFound
	}

	return domain.VisitorView{
		Deal:         *deal,
		ReferralCode: sub.ReferralCode,
		ReferralLink: r.links.BuildReferralLink(sub),
	}, nil
}

func (r *Resolver) Invalidate(code string) {
	r.cache.Invalidate(code)
}
