package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID              snowflake.ID     `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID     `gorm:"not null;uniqueIndex:ux_products_tenant_external,priority:1" json:"tenant_id"`
	ExternalID      string           `gorm:"type:varchar(64);not null;uniqueIndex:ux_products_tenant_external,priority:2" json:"external_id"`
	Title           string           `gorm:"type:text;not null" json:"title"`
	Handle          string           `gorm:"type:varchar(255);index" json:"handle"`
	Vendor          string           `gorm:"type:varchar(255)" json:"vendor"`
	ProductType     string           `gorm:"type:varchar(255)" json:"product_type"`
	Status          string           `gorm:"type:varchar(32)" json:"status"`
	Tags            string           `gorm:"type:text" json:"tags"`
	Raw             datatypes.JSON   `json:"-"`
	SourceCreatedAt *time.Time       `json:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time       `gorm:"index" json:"source_updated_at,omitempty"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
	Variants        []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	// KeepHandle leaves a stored handle untouched on update. Set when the
	// handle was derived locally rather than sent by the source.
	KeepHandle bool `gorm:"-" json:"-"`
}

func (Product) TableName() string { return "products" }

type ProductVariant struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID        `gorm:"not null;uniqueIndex:ux_product_variants_tenant_external,priority:1" json:"tenant_id"`
	ProductID         snowflake.ID        `gorm:"not null;index" json:"product_id"`
	ExternalID        string              `gorm:"type:varchar(64);not null;uniqueIndex:ux_product_variants_tenant_external,priority:2" json:"external_id"`
	Title             string              `gorm:"type:text" json:"title"`
	SKU               string              `gorm:"column:sku;type:varchar(255)" json:"sku"`
	Price             decimal.Decimal     `gorm:"type:numeric(20,4);not null" json:"price"`
	CompareAtPrice    decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"compare_at_price"`
	InventoryQuantity int                 `gorm:"not null" json:"inventory_quantity"`
	Position          int                 `gorm:"not null" json:"position"`
	SourceCreatedAt   *time.Time          `json:"source_created_at,omitempty"`
	SourceUpdatedAt   *time.Time          `json:"source_updated_at,omitempty"`
	CreatedAt         time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null" json:"updated_at"`
}

func (ProductVariant) TableName() string { return "product_variants" }

var MutableColumns = []string{
	"title", "handle", "vendor", "product_type", "status", "tags", "raw",
	"source_created_at", "source_updated_at", "updated_at",
}

// UpdateColumns returns the columns an upsert of p may overwrite.
func (p *Product) UpdateColumns() []string {
	if !p.KeepHandle {
		return MutableColumns
	}
	columns := make([]string, 0, len(MutableColumns)-1)
	for _, c := range MutableColumns {
		if c != "handle" {
			columns = append(columns, c)
		}
	}
	return columns
}

// VariantMutableColumns includes product_id so a variant that moved to
// another product follows it.
var VariantMutableColumns = []string{
	"product_id", "title", "sku", "price", "compare_at_price",
	"inventory_quantity", "position", "source_created_at", "source_updated_at", "updated_at",
}
