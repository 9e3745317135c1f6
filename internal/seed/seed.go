package seed

import (
	"context"
	"strings"

	"github.com/smallbiznis/storesync/internal/config"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	"go.uber.org/zap"
)

// EnsureTenant registers the tenant named by SEED_SHOP_DOMAIN so a fresh
// install has something to sync. It is a no-op when the domain is unset.
func EnsureTenant(ctx context.Context, tenants tenantdomain.Service, cfg config.SeedConfig, log *zap.Logger) error {
	shopDomain := strings.TrimSpace(cfg.ShopDomain)
	if shopDomain == "" {
		return nil
	}

	tenant, err := tenants.Ensure(ctx, tenantdomain.EnsureTenantRequest{
		ShopDomain:  shopDomain,
		AccessToken: strings.TrimSpace(cfg.AccessToken),
	})
	if err != nil {
		return err
	}

	log.Info("seed tenant ensured",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("shop_domain", tenant.ShopDomain),
		zap.Bool("has_credential", tenant.HasCredential()),
	)
	return nil
}
