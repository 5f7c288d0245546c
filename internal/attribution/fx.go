package attribution

import (
	"github.com/smallbiznis/dealshark/internal/attribution/repository"
	"github.com/smallbiznis/dealshark/internal/attribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
