package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Customer struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID    `gorm:"not null;uniqueIndex:ux_customers_tenant_external,priority:1" json:"tenant_id"`
	ExternalID      string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_customers_tenant_external,priority:2" json:"external_id"`
	Email           *string         `gorm:"type:varchar(255);index" json:"email,omitempty"`
	FirstName       *string         `gorm:"type:varchar(255)" json:"first_name,omitempty"`
	LastName        *string         `gorm:"type:varchar(255)" json:"last_name,omitempty"`
	Phone           *string         `gorm:"type:varchar(64)" json:"phone,omitempty"`
	State           string          `gorm:"type:varchar(32)" json:"state"`
	Tags            string          `gorm:"type:text" json:"tags"`
	OrdersCount     int             `gorm:"not null" json:"orders_count"`
	TotalSpent      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_spent"`
	Currency        string          `gorm:"type:varchar(8)" json:"currency"`
	Raw             datatypes.JSON  `json:"-"`
	SourceCreatedAt *time.Time      `json:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time      `gorm:"index" json:"source_updated_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// MutableColumns are overwritten when a record with the same
// (tenant_id, external_id) is ingested again.
var MutableColumns = []string{
	"email", "first_name", "last_name", "phone", "state", "tags",
	"orders_count", "total_spent", "currency", "raw",
	"source_created_at", "source_updated_at", "updated_at",
}
