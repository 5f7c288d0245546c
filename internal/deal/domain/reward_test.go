package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionRewardIsPercentOfPurchase(t *testing.T) {
	r := CommissionReward{Percent: decimal.NewFromInt(10)}
	assert.Equal(t, int64(1000), r.Commission(10000))

	half := CommissionReward{Percent: decimal.RequireFromString("12.5")}
	assert.Equal(t, int64(13), half.Commission(100), "12.5 cents rounds half up")
	assert.Equal(t, int64(0), half.Commission(0))
}

func TestNoRewardNeverPays(t *testing.T) {
	r := NoReward{Reason: ReasonHighDemand}
	for _, cents := range []int64{1, 99, 5000, 1 << 40} {
		assert.Equal(t, int64(0), r.Commission(cents))
	}
}

func TestValidateReward(t *testing.T) {
	ceiling := decimal.NewFromInt(50)

	cases := []struct {
		name   string
		reward Reward
		err    error
	}{
		{"nil", nil, ErrInvalidRewardType},
		{"commission ok", CommissionReward{Percent: decimal.RequireFromString("12.75")}, nil},
		{"commission zero", CommissionReward{Percent: decimal.Zero}, ErrInvalidIncentive},
		{"commission negative", CommissionReward{Percent: decimal.NewFromInt(-1)}, ErrInvalidIncentive},
		{"commission too precise", CommissionReward{Percent: decimal.RequireFromString("1.005")}, ErrInvalidIncentive},
		{"commission above config", CommissionReward{Percent: decimal.NewFromInt(51)}, ErrInvalidIncentive},
		{"no reward ok", NoReward{Reason: ReasonTestingPhase}, nil},
		{"no reward unknown reason", NoReward{Reason: "bored"}, ErrInvalidNoRewardReason},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateReward(tc.reward, ceiling)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestValidateRewardCapsAtHundred(t *testing.T) {
	err := ValidateReward(CommissionReward{Percent: decimal.NewFromInt(101)}, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, ErrInvalidIncentive)
}

func TestParseReward(t *testing.T) {
	pct := decimal.NewFromInt(10)

	r, err := ParseReward("Commission", &pct, "")
	require.NoError(t, err)
	assert.Equal(t, CommissionReward{Percent: pct}, r)

	_, err = ParseReward("commission", nil, "")
	assert.ErrorIs(t, err, ErrInvalidIncentive)

	r, err = ParseReward("no_reward", nil, "premium_branding")
	require.NoError(t, err)
	assert.Equal(t, NoReward{Reason: ReasonPremiumBranding}, r)

	_, err = ParseReward("no_reward", &pct, "")
	assert.ErrorIs(t, err, ErrInvalidNoRewardReason)

	_, err = ParseReward("discount", nil, "")
	assert.ErrorIs(t, err, ErrInvalidRewardType)
}

func TestDealRewardRoundTrip(t *testing.T) {
	var d Deal
	d.SetReward(CommissionReward{Percent: decimal.NewFromInt(15)})
	assert.Equal(t, RewardTypeCommission, d.RewardType)
	assert.True(t, d.CustomerIncentive.Valid)
	assert.Nil(t, d.NoRewardReason)
	assert.Equal(t, RewardTypeCommission, d.Reward().Type())

	d.SetReward(NoReward{Reason: ReasonAlreadyDiscounted})
	assert.Equal(t, RewardTypeNoReward, d.RewardType)
	assert.False(t, d.CustomerIncentive.Valid)
	require.NotNil(t, d.NoRewardReason)
	assert.Equal(t, NoReward{Reason: ReasonAlreadyDiscounted}, d.Reward())
}

func TestDealRewardWithMissingIncentivePaysNothing(t *testing.T) {
	d := Deal{RewardType: RewardTypeCommission}
	assert.Equal(t, int64(0), d.Reward().Commission(10000))
}
