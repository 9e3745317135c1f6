package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type EnsureTenantRequest struct {
	ShopDomain  string
	AccessToken string
}

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Tenant, error)
	// GetActiveByShopDomain resolves the tenant a webhook belongs to.
	GetActiveByShopDomain(ctx context.Context, shopDomain string) (Tenant, error)
	ListSyncable(ctx context.Context) ([]Tenant, error)
	// ResolveCredential returns the plaintext access token for the source API.
	ResolveCredential(tenant Tenant) (string, error)
	Ensure(ctx context.Context, req EnsureTenantRequest) (Tenant, error)
	// SetStatus activates or deactivates a tenant. An inactive tenant stops
	// receiving webhooks and scheduled syncs.
	SetStatus(ctx context.Context, id snowflake.ID, status Status) (Tenant, error)
}

var (
	ErrTenantNotFound     = errors.New("tenant_not_found")
	ErrMissingCredential  = errors.New("missing_credential")
	ErrInvalidCredential  = errors.New("invalid_credential")
	ErrEncryptionKeyUnset = errors.New("encryption_key_missing")
	ErrInvalidStatus      = errors.New("invalid_status")
)
