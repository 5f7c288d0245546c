package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/clock"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/events"
	"github.com/smallbiznis/dealshark/internal/observability/metrics"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	"github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/smallbiznis/dealshark/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	DealRepo dealdomain.Repository
	Locker   domain.PairLocker
	Links    referrallinkdomain.LinkBuilder
	Resolver referrallinkdomain.Resolver
	Events   events.Publisher
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	dealRepo dealdomain.Repository
	locker   domain.PairLocker
	links    referrallinkdomain.LinkBuilder
	resolver referrallinkdomain.Resolver
	events   events.Publisher
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		dealRepo: p.DealRepo,
		locker:   p.Locker,
		links:    p.Links,
		resolver: p.Resolver,
		events:   p.Events,
		metrics:  p.Metrics,
	}
}

type subscribeOutcome int

const (
	outcomeExisting subscribeOutcome = iota
	outcomeCreated
	outcomeReactivated
)

// Subscribe is idempotent for an active pair. An inactive pair is reactivated
// with its original code so links already shared keep working.
func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (domain.SubscriptionView, error) {
	if err := validatePair(req); err != nil {
		return domain.SubscriptionView{}, err
	}

	unlock, err := s.locker.Lock(ctx, req.DealID, req.ReferrerID)
	if err != nil {
		return domain.SubscriptionView{}, err
	}
	defer unlock()

	now := s.clock.Now()
	var (
		sub     domain.Subscription
		deal    dealdomain.Deal
		outcome = outcomeExisting
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.dealRepo.FindByIDForUpdate(ctx, tx, req.DealID)
		if err != nil {
			return err
		}
		if current == nil {
			return dealdomain.ErrNotFound
		}
		if !current.IsActive {
			return dealdomain.ErrDealInactive
		}
		deal = *current

		existing, err := s.repo.FindByPairForUpdate(ctx, tx, req.DealID, req.ReferrerID)
		if err != nil {
			return err
		}

		switch {
		case existing != nil && existing.IsActive:
			sub = *existing
			return nil
		case existing != nil:
			if err := s.repo.SetActive(ctx, tx, existing.ID, true, now); err != nil {
				return err
			}
			sub = *existing
			sub.IsActive = true
			sub.ReactivatedAt = &now
			sub.UpdatedAt = now
			outcome = outcomeReactivated
		default:
			code, err := referrallinkdomain.NewCode()
			if err != nil {
				return err
			}
			sub = domain.Subscription{
				ID:             s.genID.Generate(),
				DealID:         req.DealID,
				ReferrerUserID: req.ReferrerID,
				ReferralCode:   code,
				IsActive:       true,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.repo.Insert(ctx, tx, &sub); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrConflict
				}
				return err
			}
			outcome = outcomeCreated
		}

		if err := s.dealRepo.AdjustSubscribers(ctx, tx, deal.ID, 1, now); err != nil {
			return err
		}
		deal.SubscribersCount++
		deal.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.SubscriptionView{}, err
	}

	view := s.view(sub, deal)
	if outcome == outcomeExisting {
		return view, nil
	}

	reactivated := outcome == outcomeReactivated
	view.Reactivated = reactivated
	if reactivated {
		s.resolver.Invalidate(sub.ReferralCode)
	}
	s.metrics.RecordSubscribed(ctx, reactivated)
	s.log.Info("referrer subscribed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("deal_id", deal.ID.String()),
		zap.Bool("reactivated", reactivated),
	)
	events.Emit(ctx, s.events, s.log, events.New(ctx, events.SubscriptionSubscribed, sub.ID.String(), now, map[string]any{
		"subscription_id":  sub.ID.String(),
		"deal_id":          deal.ID.String(),
		"business_id":      deal.BusinessID.String(),
		"referrer_user_id": sub.ReferrerUserID.String(),
		"reactivated":      reactivated,
	}))

	return view, nil
}

// Unsubscribe deactivates the pair. The row and its code are kept for attribution history.
func (s *Service) Unsubscribe(ctx context.Context, req domain.SubscribeRequest) (domain.SubscriptionView, error) {
	if err := validatePair(req); err != nil {
		return domain.SubscriptionView{}, err
	}

	unlock, err := s.locker.Lock(ctx, req.DealID, req.ReferrerID)
	if err != nil {
		return domain.SubscriptionView{}, err
	}
	defer unlock()

	now := s.clock.Now()
	var (
		sub  domain.Subscription
		deal dealdomain.Deal
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.dealRepo.FindByIDForUpdate(ctx, tx, req.DealID)
		if err != nil {
			return err
		}
		if current == nil {
			return dealdomain.ErrNotFound
		}
		deal = *current

		existing, err := s.repo.FindByPairForUpdate(ctx, tx, req.DealID, req.ReferrerID)
		if err != nil {
			return err
		}
		if existing == nil || !existing.IsActive {
			return domain.ErrNotFound
		}

		if err := s.repo.SetActive(ctx, tx, existing.ID, false, now); err != nil {
			return err
		}
		if err := s.dealRepo.AdjustSubscribers(ctx, tx, deal.ID, -1, now); err != nil {
			return err
		}

		sub = *existing
		sub.IsActive = false
		sub.UnsubscribedAt = &now
		sub.UpdatedAt = now
		if deal.SubscribersCount > 0 {
			deal.SubscribersCount--
		}
		deal.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.SubscriptionView{}, err
	}

	s.resolver.Invalidate(sub.ReferralCode)
	s.metrics.RecordUnsubscribed(ctx)
	s.log.Info("referrer unsubscribed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("deal_id", deal.ID.String()),
	)
	events.Emit(ctx, s.events, s.log, events.New(ctx, events.SubscriptionUnsubscribed, sub.ID.String(), now, map[string]any{
		"subscription_id":  sub.ID.String(),
		"deal_id":          deal.ID.String(),
		"business_id":      deal.BusinessID.String(),
		"referrer_user_id": sub.ReferrerUserID.String(),
	}))

	return s.view(sub, deal), nil
}

func (s *Service) GetSubscription(ctx context.Context, dealID, referrerID snowflake.ID) (*domain.Subscription, error) {
	if err := validatePair(domain.SubscribeRequest{DealID: dealID, ReferrerID: referrerID}); err != nil {
		return nil, err
	}
	return s.repo.FindByPair(ctx, s.db, dealID, referrerID)
}

func (s *Service) IsSubscribed(ctx context.Context, dealID, referrerID snowflake.ID) (bool, error) {
	sub, err := s.GetSubscription(ctx, dealID, referrerID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.IsActive, nil
}

func (s *Service) ListForReferrer(ctx context.Context, referrerID snowflake.ID, onlyActive bool) ([]domain.SubscriptionView, error) {
	if referrerID == 0 {
		return nil, domain.ErrInvalidReferrer
	}

	subs, err := s.repo.ListByReferrer(ctx, s.db, referrerID, onlyActive)
	if err != nil {
		return nil, err
	}

	dealIDs := make([]snowflake.ID, 0, len(subs))
	for _, sub := range subs {
		dealIDs = append(dealIDs, sub.DealID)
	}
	deals, err := s.dealRepo.FindByIDs(ctx, s.db, dealIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		deal, ok := deals[sub.DealID]
		if !ok {
			s.log.Warn("subscription references missing deal",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("deal_id", sub.DealID.String()),
			)
			continue
		}
		views = append(views, s.view(*sub, *deal))
	}
	return views, nil
}

func (s *Service) ListSubscribersForBusiness(ctx context.Context, req domain.ListSubscribersRequest) ([]domain.SubscriberView, error) {
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}

	deals, err := s.dealRepo.ListByBusiness(ctx, s.db, req.BusinessID, true)
	if err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]*dealdomain.Deal, len(deals))
	dealIDs := make([]snowflake.ID, 0, len(deals))
	for _, deal := range deals {
		if req.DealID != nil && deal.ID != *req.DealID {
			continue
		}
		byID[deal.ID] = deal
		dealIDs = append(dealIDs, deal.ID)
	}
	if req.DealID != nil && len(dealIDs) == 0 {
		return nil, dealdomain.ErrNotFound
	}

	subs, err := s.repo.ListByDeals(ctx, s.db, dealIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.SubscriberView, 0, len(subs))
	for _, sub := range subs {
		deal := byID[sub.DealID]
		views = append(views, domain.SubscriberView{
			SubscriptionID:       sub.ID,
			ReferrerUserID:       sub.ReferrerUserID,
			DealID:               sub.DealID,
			DealName:             deal.Name,
			ReferralCode:         sub.ReferralCode,
			IsActive:             sub.IsActive,
			ConversionCount:      sub.ConversionCount,
			TotalCommissionCents: sub.TotalCommissionCents,
			TotalRevenueCents:    sub.TotalRevenueCents,
			SubscribedAt:         sub.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) view(sub domain.Subscription, deal dealdomain.Deal) domain.SubscriptionView {
	return domain.SubscriptionView{
		Subscription: sub,
		ReferralLink: s.links.BuildReferralLink(sub),
		Deal:         deal,
	}
}

func validatePair(req domain.SubscribeRequest) error {
	if req.DealID == 0 {
		return domain.ErrInvalidDeal
	}
	if req.ReferrerID == 0 {
		return domain.ErrInvalidReferrer
	}
	return nil
}

