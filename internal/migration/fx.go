package migration

import (
	"context"

	"github.com/smallbiznis/storesync/internal/config"
	"github.com/smallbiznis/storesync/internal/seed"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, tenants tenantdomain.Service, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		return seed.EnsureTenant(context.Background(), tenants, cfg.Seed, log)
	}),
)
