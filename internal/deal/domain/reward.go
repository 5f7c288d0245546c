package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dealshark/pkg/money"
)

type RewardType string

const (
	RewardTypeCommission RewardType = "commission"
	RewardTypeNoReward   RewardType = "no_reward"
)

func ParseRewardType(raw string) (RewardType, error) {
	switch RewardType(strings.ToLower(strings.TrimSpace(raw))) {
	case RewardTypeCommission:
		return RewardTypeCommission, nil
	case RewardTypeNoReward:
		return RewardTypeNoReward, nil
	default:
		return "", ErrInvalidRewardType
	}
}

type NoRewardReason string

const (
	ReasonAlreadyDiscounted NoRewardReason = "already_discounted"
	ReasonExclusiveServices NoRewardReason = "exclusive_services"
	ReasonPremiumBranding   NoRewardReason = "premium_branding"
	ReasonHighDemand        NoRewardReason = "high_demand"
	ReasonTestingPhase      NoRewardReason = "testing_phase"
)

var noRewardReasons = []NoRewardReason{
	ReasonAlreadyDiscounted,
	ReasonExclusiveServices,
	ReasonPremiumBranding,
	ReasonHighDemand,
	ReasonTestingPhase,
}

func ParseNoRewardReason(raw string) (NoRewardReason, error) {
	reason := NoRewardReason(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range noRewardReasons {
		if reason == known {
			return reason, nil
		}
	}
	return "", ErrInvalidNoRewardReason
}

// Reward is what a deal pays its referrers. The only implementations are
// CommissionReward and NoReward.
type Reward interface {
	Type() RewardType
	// Commission is the referrer's share of a purchase, in cents.
	Commission(purchaseCents int64) int64
	validate(maxPercent decimal.Decimal) error
}

// CommissionReward pays Percent of each purchase to the referrer.
type CommissionReward struct {
	Percent decimal.Decimal
}

func (CommissionReward) Type() RewardType { return RewardTypeCommission }

func (r CommissionReward) Commission(purchaseCents int64) int64 {
	return money.PercentOf(purchaseCents, r.Percent)
}

func (r CommissionReward) validate(maxPercent decimal.Decimal) error {
	if !r.Percent.IsPositive() || money.Decimals(r.Percent) > 2 {
		return ErrInvalidIncentive
	}
	if r.Percent.GreaterThan(maxPercent) || r.Percent.GreaterThan(maxIncentivePercent) {
		return ErrInvalidIncentive
	}
	return nil
}

// NoReward never pays the referrer.
type NoReward struct {
	Reason NoRewardReason
}

func (NoReward) Type() RewardType { return RewardTypeNoReward }

func (NoReward) Commission(int64) int64 { return 0 }

func (r NoReward) validate(decimal.Decimal) error {
	if _, err := ParseNoRewardReason(string(r.Reason)); err != nil {
		return err
	}
	return nil
}

// maxIncentivePercent is the column limit, independent of configuration.
var maxIncentivePercent = decimal.NewFromInt(100)

// ValidateReward checks r against a configured incentive ceiling.
func ValidateReward(r Reward, maxPercent decimal.Decimal) error {
	if r == nil {
		return ErrInvalidRewardType
	}
	return r.validate(maxPercent)
}

// ParseReward builds a reward from request fields.
func ParseReward(rewardType string, incentive *decimal.Decimal, reason string) (Reward, error) {
	kind, err := ParseRewardType(rewardType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case RewardTypeCommission:
		if incentive == nil {
			return nil, ErrInvalidIncentive
		}
		return CommissionReward{Percent: *incentive}, nil
	default:
		r, err := ParseNoRewardReason(reason)
		if err != nil {
			return nil, err
		}
		return NoReward{Reason: r}, nil
	}
}
