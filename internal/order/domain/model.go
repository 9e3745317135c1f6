package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Order struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID           snowflake.ID    `gorm:"not null;uniqueIndex:ux_orders_tenant_external,priority:1" json:"tenant_id"`
	ExternalID         string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_tenant_external,priority:2" json:"external_id"`
	CustomerID         *snowflake.ID   `gorm:"index" json:"customer_id,omitempty"`
	CustomerExternalID *string         `gorm:"type:varchar(64)" json:"customer_external_id,omitempty"`
	Name               string          `gorm:"type:varchar(64)" json:"name"`
	OrderNumber        int             `json:"order_number"`
	Email              *string         `gorm:"type:varchar(255)" json:"email,omitempty"`
	FinancialStatus    string          `gorm:"type:varchar(32)" json:"financial_status"`
	FulfillmentStatus  string          `gorm:"type:varchar(32)" json:"fulfillment_status"`
	Currency           string          `gorm:"type:varchar(8)" json:"currency"`
	TotalPrice         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_price"`
	SubtotalPrice      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"subtotal_price"`
	TotalTax           decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_tax"`
	TotalDiscounts     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_discounts"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	Raw                datatypes.JSON  `json:"-"`
	SourceCreatedAt    *time.Time      `json:"source_created_at,omitempty"`
	SourceUpdatedAt    *time.Time      `gorm:"index" json:"source_updated_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
	LineItems          []LineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
}

func (Order) TableName() string { return "orders" }

type LineItem struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID    `gorm:"not null;uniqueIndex:ux_order_line_items_tenant_external,priority:1" json:"tenant_id"`
	OrderID           snowflake.ID    `gorm:"not null;index" json:"order_id"`
	ExternalID        string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_order_line_items_tenant_external,priority:2" json:"external_id"`
	ProductExternalID *string         `gorm:"type:varchar(64)" json:"product_external_id,omitempty"`
	VariantExternalID *string         `gorm:"type:varchar(64)" json:"variant_external_id,omitempty"`
	Title             string          `gorm:"type:text" json:"title"`
	SKU               string          `gorm:"column:sku;type:varchar(255)" json:"sku"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (LineItem) TableName() string { return "order_line_items" }

var MutableColumns = []string{
	"customer_id", "customer_external_id", "name", "order_number", "email",
	"financial_status", "fulfillment_status", "currency",
	"total_price", "subtotal_price", "total_tax", "total_discounts",
	"processed_at", "cancelled_at", "raw",
	"source_created_at", "source_updated_at", "updated_at",
}

var LineItemMutableColumns = []string{
	"order_id", "product_external_id", "variant_external_id",
	"title", "sku", "quantity", "price", "updated_at",
}
