package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/cache"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	"github.com/smallbiznis/storesync/internal/source"
	"github.com/smallbiznis/storesync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Cfg   config.Config
	Clock clock.Clock
	Cache cache.TenantCache `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	clock  clock.Clock
	cache  cache.TenantCache
	encKey []byte
}

func New(p Params) (domain.Service, error) {
	key, err := deriveCredentialKey(p.Cfg.CredentialKey)
	if err != nil {
		return nil, err
	}

	tenantCache := p.Cache
	if tenantCache == nil {
		tenantCache = cache.NewTenantCache()
	}
	c := p.Clock
	if c == nil {
		c = clock.New()
	}

	return &Service{
		db:     p.DB,
		log:    p.Log.Named("tenant.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		clock:  c,
		cache:  tenantCache,
		encKey: key,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Tenant, error) {
	if id == 0 {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return *tenant, nil
}

func (s *Service) GetActiveByShopDomain(ctx context.Context, shopDomain string) (domain.Tenant, error) {
	normalized, err := source.NormalizeShopDomain(shopDomain)
	if err != nil {
		return domain.Tenant{}, err
	}
	// SetStatus invalidates this process's entry. Other replicas may keep
	// serving a deactivated tenant until their entry expires.
	if cached, ok := s.cache.GetByShopDomain(normalized); ok && cached.IsActive() {
		return cached, nil
	}

	tenant, err := s.repo.FindByShopDomain(ctx, s.db, normalized)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil || !tenant.IsActive() {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}

	s.cache.SetByShopDomain(normalized, *tenant)
	return *tenant, nil
}

func (s *Service) ListSyncable(ctx context.Context) ([]domain.Tenant, error) {
	items, err := s.repo.ListActiveWithCredential(ctx, s.db)
	if err != nil {
		return nil, err
	}
	tenants := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenants = append(tenants, *item)
	}
	return tenants, nil
}

func (s *Service) ResolveCredential(tenant domain.Tenant) (string, error) {
	if !tenant.HasCredential() {
		return "", domain.ErrMissingCredential
	}
	plaintext, err := openCredential(s.encKey, *tenant.AccessToken)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(plaintext) == "" {
		return "", domain.ErrMissingCredential
	}
	return plaintext, nil
}

// Ensure provisions a local tenant, or refreshes its access token. Tokens
// are sealed when a credential key is configured.
func (s *Service) Ensure(ctx context.Context, req domain.EnsureTenantRequest) (domain.Tenant, error) {
	shopDomain, err := source.NormalizeShopDomain(req.ShopDomain)
	if err != nil {
		return domain.Tenant{}, err
	}

	accessToken, err := s.storedCredential(req.AccessToken)
	if err != nil {
		return domain.Tenant{}, err
	}

	var result domain.Tenant
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByShopDomain(ctx, tx, shopDomain)
		if err != nil {
			return err
		}
		if existing != nil {
			if accessToken != nil {
				if err := s.repo.UpdateAccessToken(ctx, tx, existing.ID, accessToken); err != nil {
					return err
				}
				existing.AccessToken = accessToken
			}
			result = *existing
			return nil
		}

		now := s.clock.Now()
		tenant := &domain.Tenant{
			ID:          s.genID.Generate(),
			ShopDomain:  shopDomain,
			AccessToken: accessToken,
			Status:      domain.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, tenant); err != nil {
			return err
		}
		result = *tenant
		return nil
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	s.cache.Invalidate(shopDomain)
	s.log.Info("tenant ensured",
		zap.String("tenant_id", result.ID.String()),
		zap.String("shop_domain", shopDomain),
		zap.Bool("has_credential", result.HasCredential()),
	)
	return result, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.Status) (domain.Tenant, error) {
	if !status.Valid() {
		return domain.Tenant{}, domain.ErrInvalidStatus
	}
	if id == 0 {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}

	var result domain.Tenant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domain.ErrTenantNotFound
		}
		if tenant.Status != status {
			if err := s.repo.UpdateStatus(ctx, tx, id, status); err != nil {
				return err
			}
			tenant.Status = status
		}
		result = *tenant
		return nil
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	s.cache.Invalidate(result.ShopDomain)
	s.log.Info("tenant status changed",
		zap.String("tenant_id", result.ID.String()),
		zap.String("shop_domain", result.ShopDomain),
		zap.String("status", string(status)),
	)
	return result, nil
}

func (s *Service) storedCredential(token string) (*string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if len(s.encKey) == 0 {
		return &token, nil
	}
	sealed, err := sealCredential(s.encKey, token)
	if err != nil {
		if errors.Is(err, domain.ErrEncryptionKeyUnset) {
			return &token, nil
		}
		return nil, err
	}
	return &sealed, nil
}
