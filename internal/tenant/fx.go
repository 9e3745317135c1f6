package tenant

import (
	"github.com/smallbiznis/storesync/internal/cache"
	"github.com/smallbiznis/storesync/internal/tenant/repository"
	"github.com/smallbiznis/storesync/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(cache.NewTenantCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
