package referrallink

import (
	"github.com/smallbiznis/dealshark/internal/cache"
	"github.com/smallbiznis/dealshark/internal/referrallink/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referrallink.service",
	fx.Provide(cache.NewReferralCodeCache),
	fx.Provide(service.NewLinkBuilder),
	fx.Provide(service.NewResolver),
)
