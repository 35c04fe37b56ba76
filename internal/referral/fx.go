package referral

import (
	"github.com/smallbiznis/referral/internal/referral/repository"
	"github.com/smallbiznis/referral/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.ProvideLink),
	fx.Provide(repository.ProvideRelationship),
	fx.Provide(repository.ProvideCommission),
	fx.Provide(service.New),
)
