package cache

import (
	"strings"
	"time"

	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
)

const defaultTenantTTL = time.Minute

// TenantCache stores shop-domain lookups for the webhook hot path.
type TenantCache interface {
	GetByShopDomain(shopDomain string) (tenantdomain.Tenant, bool)
	SetByShopDomain(shopDomain string, tenant tenantdomain.Tenant)
	Invalidate(shopDomain string)
}

type tenantCache struct {
	tenants Cache[string, tenantdomain.Tenant]
	ttl     time.Duration
}

// NewTenantCache returns an in-memory cache tuned for webhook tenant resolution.
func NewTenantCache() TenantCache {
	return &tenantCache{
		tenants: NewTTLCache[string, tenantdomain.Tenant](),
		ttl:     defaultTenantTTL,
	}
}

func (c *tenantCache) GetByShopDomain(shopDomain string) (tenantdomain.Tenant, bool) {
	return c.tenants.Get(cacheKey(shopDomain))
}

func (c *tenantCache) SetByShopDomain(shopDomain string, tenant tenantdomain.Tenant) {
	if tenant.ID == 0 {
		return
	}
	c.tenants.Set(cacheKey(shopDomain), tenant, c.ttl)
}

func (c *tenantCache) Invalidate(shopDomain string) {
	c.tenants.Delete(cacheKey(shopDomain))
}

func cacheKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(normalized, ":")
}
