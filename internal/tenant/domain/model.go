package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Tenant is one connected store. AccessToken holds either a plaintext token
// or a "v1:" sealed envelope.
type Tenant struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ShopDomain  string       `gorm:"type:varchar(255);not null;uniqueIndex:ux_tenants_shop_domain" json:"shop_domain"`
	AccessToken *string      `gorm:"type:text" json:"-"`
	Status      Status       `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

func (t Tenant) IsActive() bool {
	return t.Status == StatusActive
}

func (t Tenant) HasCredential() bool {
	return t.AccessToken != nil && strings.TrimSpace(*t.AccessToken) != ""
}
