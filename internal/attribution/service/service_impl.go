package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/attribution/domain"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/config"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/events"
	"github.com/smallbiznis/dealshark/internal/observability/metrics"
	"github.com/smallbiznis/dealshark/internal/providers/pdf"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"github.com/smallbiznis/dealshark/pkg/db"
	"github.com/smallbiznis/dealshark/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxClockSkew bounds how far in the future a conversion source may stamp occurred_at.
const maxClockSkew = 5 * time.Minute

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	SubRepo  subscriptiondomain.Repository
	DealRepo dealdomain.Repository
	Resolver referrallinkdomain.Resolver
	PDF      pdf.Provider
	Config   *config.ReferralConfigHolder
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
	dealRepo dealdomain.Repository
	resolver referrallinkdomain.Resolver
	pdf      pdf.Provider
	cfg      *config.ReferralConfigHolder
	events   events.Publisher
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("attribution.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		dealRepo: p.DealRepo,
		resolver: p.Resolver,
		pdf:      p.PDF,
		cfg:      p.Config,
		events:   p.Events,
		metrics:  p.Metrics,
	}
}

// RecordConversion credits a purchase to the subscription behind a code. The
// active check runs under the subscription row lock, so a cached resolve can
// never pay out after an unsubscribe.
func (s *Service) RecordConversion(ctx context.Context, req domain.RecordConversionRequest) (domain.ConversionResult, error) {
	code := strings.TrimSpace(req.ReferralCode)
	if code == "" {
		return domain.ConversionResult{}, domain.ErrInvalidReferralCode
	}

	purchaseCents, err := money.ToCents(req.PurchaseAmount)
	if err != nil || purchaseCents <= 0 {
		return domain.ConversionResult{}, domain.ErrInvalidPurchaseAmount
	}

	var orderRef *string
	if ref := strings.TrimSpace(req.OrderReference); ref != "" {
		if len(ref) > domain.MaxOrderReference {
			return domain.ConversionResult{}, domain.ErrInvalidOrderReference
		}
		orderRef = &ref
	}

	now := s.clock.Now()
	occurredAt := now
	if req.OccurredAt != nil && !req.OccurredAt.IsZero() {
		if req.OccurredAt.After(now.Add(maxClockSkew)) {
			return domain.ConversionResult{}, domain.ErrInvalidOccurredAt
		}
		occurredAt = req.OccurredAt.UTC()
	}

	resolved, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, referrallinkdomain.ErrNotFound) {
			return domain.ConversionResult{}, domain.ErrNotFound
		}
		return domain.ConversionResult{}, err
	}

	var (
		record   domain.AttributionRecord
		replayed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subRepo.FindByIDForUpdate(ctx, tx, resolved.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}

		deal, err := s.dealRepo.FindByID(ctx, tx, sub.DealID)
		if err != nil {
			return err
		}
		if deal == nil {
			return domain.ErrNotFound
		}
		if req.BusinessID != 0 && deal.BusinessID != req.BusinessID {
			return domain.ErrForbidden
		}
		if !sub.IsActive {
			return domain.ErrSubscriptionInactive
		}

		if orderRef != nil {
			existing, err := s.repo.FindByOrderReference(ctx, tx, sub.ID, *orderRef)
			if err != nil {
				return err
			}
			if existing != nil {
				record = *existing
				replayed = true
				return nil
			}
		}

		reward := deal.Reward()
		commission := reward.Commission(purchaseCents)
		record = domain.AttributionRecord{
			ID:                   s.genID.Generate(),
			SubscriptionID:       sub.ID,
			DealID:               deal.ID,
			BusinessID:           deal.BusinessID,
			ReferrerUserID:       sub.ReferrerUserID,
			RewardType:           reward.Type(),
			IncentivePercent:     deal.CustomerIncentive,
			PurchaseAmountCents:  purchaseCents,
			CommissionCents:      commission,
			BusinessRevenueCents: purchaseCents - commission,
			OrderReference:       orderRef,
			Metadata:             datatypes.JSONMap(copyMetadata(req.Metadata)),
			OccurredAt:           occurredAt,
			CreatedAt:            now,
		}
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrConflict
			}
			return err
		}
		return s.subRepo.AddTotals(ctx, tx, sub.ID, record.CommissionCents, record.BusinessRevenueCents, now)
	})
	if err != nil {
		return domain.ConversionResult{}, err
	}

	result := domain.ConversionResult{Record: record.Response(), Replayed: replayed}
	if replayed {
		return result, nil
	}

	s.metrics.RecordConversion(ctx, string(record.RewardType), record.CommissionCents)
	s.log.Info("conversion recorded",
		zap.String("record_id", record.ID.String()),
		zap.String("subscription_id", record.SubscriptionID.String()),
		zap.Int64("commission_cents", record.CommissionCents),
	)
	events.Emit(ctx, s.events, s.log, events.New(ctx, events.ConversionRecorded, record.SubscriptionID.String(), now, map[string]any{
		"record_id":               record.ID.String(),
		"subscription_id":         record.SubscriptionID.String(),
		"deal_id":                 record.DealID.String(),
		"business_id":             record.BusinessID.String(),
		"referrer_user_id":        record.ReferrerUserID.String(),
		"purchase_amount":         money.Format(record.PurchaseAmountCents),
		"amount_commission":       money.Format(record.CommissionCents),
		"amount_business_revenue": money.Format(record.BusinessRevenueCents),
	}))

	return result, nil
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = value
	}
	return out
}
