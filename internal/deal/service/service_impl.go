package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/events"
	"github.com/smallbiznis/dealshark/internal/observability/metrics"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
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
	SubRepo  subscriptiondomain.Repository
	Links    referrallinkdomain.LinkBuilder
	Config   *config.ReferralConfigHolder
	AuditSvc auditdomain.Service
	Events   events.Publisher
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	subRepo  subscriptiondomain.Repository
	links    referrallinkdomain.LinkBuilder
	cfg      *config.ReferralConfigHolder
	auditSvc auditdomain.Service
	events   events.Publisher
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("deal.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		links:    p.Links,
		cfg:      p.Config,
		auditSvc: p.AuditSvc,
		events:   p.Events,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDealRequest) (domain.Deal, error) {
	if req.BusinessID == 0 {
		return domain.Deal{}, domain.ErrInvalidBusiness
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxNameLength {
		return domain.Deal{}, domain.ErrInvalidName
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Deal{}, domain.ErrInvalidDescription
	}

	maxPercent := decimal.NewFromFloat(s.cfg.Get().MaxIncentivePercent)
	if err := domain.ValidateReward(req.Reward, maxPercent); err != nil {
		return domain.Deal{}, err
	}

	now := s.clock.Now()
	deal := domain.Deal{
		ID:           s.genID.Generate(),
		BusinessID:   req.BusinessID,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Industry:     strings.TrimSpace(req.Industry),
		Name:         name,
		Slug:         slug.Make(name),
		Description:  description,
		PosterText:   strings.TrimSpace(req.PosterText),
		IsActive:     true,
		IsFeatured:   req.IsFeatured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	deal.SetReward(req.Reward)

	if err := s.repo.Insert(ctx, s.db, &deal); err != nil {
		return domain.Deal{}, err
	}

	if s.auditSvc != nil {
		targetID := deal.ID.String()
		_ = s.auditSvc.AuditLog(ctx, "deal.created", "deal", &targetID, map[string]any{
			"business_id": deal.BusinessID.String(),
			"reward_type": string(deal.RewardType),
		})
	}
	s.metrics.RecordDealCreated(ctx, string(deal.RewardType))
	events.Emit(ctx, s.events, s.log, events.New(ctx, events.DealCreated, deal.ID.String(), now, map[string]any{
		"deal_id":     deal.ID.String(),
		"business_id": deal.BusinessID.String(),
		"reward_type": string(deal.RewardType),
	}))

	return deal, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetDealRequest) (domain.DealView, error) {
	if req.ID == 0 {
		return domain.DealView{}, domain.ErrInvalidID
	}

	deal, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.DealView{}, err
	}
	if deal == nil {
		return domain.DealView{}, domain.ErrNotFound
	}

	view := domain.DealView{Deal: *deal}
	if req.ViewerID == nil || *req.ViewerID == 0 {
		return view, nil
	}

	sub, err := s.subRepo.FindByPair(ctx, s.db, deal.ID, *req.ViewerID)
	if err != nil {
		return domain.DealView{}, err
	}
	if sub != nil {
		view.SubscriptionInfo = sub.Info(s.links.BuildReferralLink(*sub))
	}
	return view, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDealRequest) (domain.ListDealResponse, error) {
	filter := domain.ListDealFilter{
		Search:          strings.TrimSpace(req.Search),
		Industry:        strings.TrimSpace(req.Industry),
		BusinessID:      req.BusinessID,
		MinIncentive:    req.MinIncentive,
		IsFeatured:      req.IsFeatured,
		IncludeInactive: req.IncludeInactive,
	}
	if raw := strings.TrimSpace(req.RewardType); raw != "" {
		rewardType, err := domain.ParseRewardType(raw)
		if err != nil {
			return domain.ListDealResponse{}, err
		}
		filter.RewardType = rewardType
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListDealResponse{}, domain.ErrInvalidPageToken
		}
	}

	pageSize := pagination.NormalizeSize(int(req.PageSize))
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListDealResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(deal *domain.Deal) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        deal.ID.String(),
			CreatedAt: deal.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListDealResponse{Deals: derefDeals(items)}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListByBusiness(ctx context.Context, businessID snowflake.ID, includeInactive bool) ([]domain.Deal, error) {
	if businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	items, err := s.repo.ListByBusiness(ctx, s.db, businessID, includeInactive)
	if err != nil {
		return nil, err
	}
	return derefDeals(items), nil
}

func (s *Service) Trending(ctx context.Context, limit int) ([]domain.Deal, error) {
	if limit <= 0 {
		limit = s.cfg.Get().TrendingLimit
	}
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}
	items, err := s.repo.ListTrending(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	return derefDeals(items), nil
}

// Deactivate is idempotent for the owner. Events and audit entries are only
// written when the deal actually changes state.
func (s *Service) Deactivate(ctx context.Context, req domain.DeactivateDealRequest) (domain.Deal, error) {
	if req.DealID == 0 {
		return domain.Deal{}, domain.ErrInvalidID
	}
	if req.BusinessID == 0 {
		return domain.Deal{}, domain.ErrInvalidBusiness
	}

	now := s.clock.Now()
	var (
		deal    domain.Deal
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, req.DealID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.BusinessID != req.BusinessID {
			return domain.ErrForbidden
		}
		deal = *current
		if !current.IsActive {
			return nil
		}
		if err := s.repo.SetActive(ctx, tx, current.ID, false, now); err != nil {
			return err
		}
		deal.IsActive = false
		deal.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return domain.Deal{}, err
	}
	if !changed {
		return deal, nil
	}

	if s.auditSvc != nil {
		targetID := deal.ID.String()
		_ = s.auditSvc.AuditLog(ctx, "deal.deactivated", "deal", &targetID, map[string]any{
			"business_id": deal.BusinessID.String(),
		})
	}
	events.Emit(ctx, s.events, s.log, events.New(ctx, events.DealDeactivated, deal.ID.String(), now, map[string]any{
		"deal_id":     deal.ID.String(),
		"business_id": deal.BusinessID.String(),
	}))

	return deal, nil
}

func (s *Service) PosterOptions() domain.PosterOptions {
	return domain.PosterOptions{
		RewardTypes: []domain.PosterOption{
			{Value: string(domain.RewardTypeCommission), Label: "Commission"},
			{Value: string(domain.RewardTypeNoReward), Label: "No reward"},
		},
		NoRewardReasons: []domain.PosterOption{
			{Value: string(domain.ReasonAlreadyDiscounted), Label: "Our products/services are already heavily discounted"},
			{Value: string(domain.ReasonExclusiveServices), Label: "We offer exclusive/limited services that don't need deals"},
			{Value: string(domain.ReasonPremiumBranding), Label: "We want to maintain premium branding without discounts"},
			{Value: string(domain.ReasonHighDemand), Label: "We already have high demand and don't need promotions"},
			{Value: string(domain.ReasonTestingPhase), Label: "We're still testing the product/service before launching deals"},
		},
	}
}

func derefDeals(items []*domain.Deal) []domain.Deal {
	deals := make([]domain.Deal, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		deals = append(deals, *item)
	}
	return deals
}
