package service

import (
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/smallbiznis/dealshark/internal/referrallink/domain"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
)

type linkBuilder struct {
	cfg *config.ReferralConfigHolder
}

func NewLinkBuilder(cfg *config.ReferralConfigHolder) domain.LinkBuilder {
	return &linkBuilder{cfg: cfg}
}

// Build returns {base}/deal/{deal_id}?ref={code}.
func (b *linkBuilder) Build(dealID snowflake.ID, code string) string {
	base := strings.TrimRight(b.cfg.Get().LinkBaseURL, "/")
	return base + "/deal/" + dealID.String() + "?ref=" + url.QueryEscape(code)
}

func (b *linkBuilder) BuildReferralLink(sub subscriptiondomain.Subscription) string {
	return b.Build(sub.DealID, sub.ReferralCode)
}
