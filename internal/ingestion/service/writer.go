package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/clock"
	customerdomain "github.com/smallbiznis/storesync/internal/customer/domain"
	"github.com/smallbiznis/storesync/internal/ingestion/domain"
	orderdomain "github.com/smallbiznis/storesync/internal/order/domain"
	productdomain "github.com/smallbiznis/storesync/internal/product/domain"
	"github.com/smallbiznis/storesync/internal/source"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WriterParams struct {
	fx.In

	GenID     *snowflake.Node
	Clock     clock.Clock
	Customers customerdomain.Repository
	Products  productdomain.Repository
	Orders    orderdomain.Repository
}

type writer struct {
	genID     *snowflake.Node
	clock     clock.Clock
	customers customerdomain.Repository
	products  productdomain.Repository
	orders    orderdomain.Repository
}

func NewWriter(p WriterParams) domain.Writer {
	return &writer{
		genID:     p.GenID,
		clock:     p.Clock,
		customers: p.Customers,
		products:  p.Products,
		orders:    p.Orders,
	}
}

func (w *writer) Write(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, entityType domain.EntityType, raw json.RawMessage) (domain.Written, error) {
	switch entityType {
	case source.EntityCustomers:
		return w.writeCustomer(ctx, tx, tenantID, raw)
	case source.EntityProducts:
		return w.writeProduct(ctx, tx, tenantID, raw)
	case source.EntityOrders:
		return w.writeOrder(ctx, tx, tenantID, raw)
	default:
		return domain.Written{}, domain.ErrInvalidEntityType
	}
}

func (w *writer) ResolveCustomerID(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, externalID *string) (*snowflake.ID, error) {
	if externalID == nil || *externalID == "" {
		return nil, nil
	}
	return w.customers.FindIDByExternalID(ctx, tx, tenantID, *externalID)
}

func (w *writer) writeCustomer(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, raw json.RawMessage) (domain.Written, error) {
	c, err := source.DecodeCustomer(raw)
	if err != nil {
		return domain.Written{}, err
	}

	now := w.clock.Now()
	model := &customerdomain.Customer{
		ID:              w.genID.Generate(),
		TenantID:        tenantID,
		ExternalID:      c.ExternalID,
		Email:           c.Email,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Phone:           c.Phone,
		State:           c.State,
		Tags:            c.Tags,
		OrdersCount:     c.OrdersCount,
		TotalSpent:      c.TotalSpent,
		Currency:        c.Currency,
		Raw:             datatypes.JSON(c.Raw),
		SourceCreatedAt: c.SourceCreatedAt,
		SourceUpdatedAt: c.SourceUpdatedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := w.customers.Upsert(ctx, tx, model); err != nil {
		return domain.Written{}, fmt.Errorf("upsert customer %s: %w", c.ExternalID, err)
	}
	return domain.Written{ID: model.ID, ExternalID: c.ExternalID, SourceUpdatedAt: c.SourceUpdatedAt}, nil
}

func (w *writer) writeProduct(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, raw json.RawMessage) (domain.Written, error) {
	p, err := source.DecodeProduct(raw)
	if err != nil {
		return domain.Written{}, err
	}

	now := w.clock.Now()
	model := &productdomain.Product{
		ID:              w.genID.Generate(),
		TenantID:        tenantID,
		ExternalID:      p.ExternalID,
		Title:           p.Title,
		Handle:          p.Handle,
		KeepHandle:      p.HandleDerived,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Status:          p.Status,
		Tags:            p.Tags,
		Raw:             datatypes.JSON(p.Raw),
		SourceCreatedAt: p.SourceCreatedAt,
		SourceUpdatedAt: p.SourceUpdatedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := w.products.Upsert(ctx, tx, model); err != nil {
		return domain.Written{}, fmt.Errorf("upsert product %s: %w", p.ExternalID, err)
	}

	keep := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		variant := &productdomain.ProductVariant{
			ID:                w.genID.Generate(),
			TenantID:          tenantID,
			ProductID:         model.ID,
			ExternalID:        v.ExternalID,
			Title:             v.Title,
			SKU:               v.SKU,
			Price:             v.Price,
			CompareAtPrice:    v.CompareAtPrice,
			InventoryQuantity: v.InventoryQuantity,
			Position:          v.Position,
			SourceCreatedAt:   v.SourceCreatedAt,
			SourceUpdatedAt:   v.SourceUpdatedAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := w.products.UpsertVariant(ctx, tx, variant); err != nil {
			return domain.Written{}, fmt.Errorf("upsert variant %s: %w", v.ExternalID, err)
		}
		keep = append(keep, v.ExternalID)
	}
	if _, err := w.products.PruneVariants(ctx, tx, tenantID, model.ID, keep); err != nil {
		return domain.Written{}, fmt.Errorf("prune variants of product %s: %w", p.ExternalID, err)
	}

	return domain.Written{ID: model.ID, ExternalID: p.ExternalID, SourceUpdatedAt: p.SourceUpdatedAt}, nil
}

func (w *writer) writeOrder(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, raw json.RawMessage) (domain.Written, error) {
	o, err := source.DecodeOrder(raw)
	if err != nil {
		return domain.Written{}, err
	}

	customerID, err := w.ResolveCustomerID(ctx, tx, tenantID, o.CustomerExternalID)
	if err != nil {
		return domain.Written{}, fmt.Errorf("resolve customer of order %s: %w", o.ExternalID, err)
	}

	now := w.clock.Now()
	model := &orderdomain.Order{
		ID:                 w.genID.Generate(),
		TenantID:           tenantID,
		ExternalID:         o.ExternalID,
		CustomerID:         customerID,
		CustomerExternalID: o.CustomerExternalID,
		Name:               o.Name,
		OrderNumber:        o.OrderNumber,
		Email:              o.Email,
		FinancialStatus:    o.FinancialStatus,
		FulfillmentStatus:  o.FulfillmentStatus,
		Currency:           o.Currency,
		TotalPrice:         o.TotalPrice,
		SubtotalPrice:      o.SubtotalPrice,
		TotalTax:           o.TotalTax,
		TotalDiscounts:     o.TotalDiscounts,
		ProcessedAt:        o.ProcessedAt,
		CancelledAt:        o.CancelledAt,
		Raw:                datatypes.JSON(o.Raw),
		SourceCreatedAt:    o.SourceCreatedAt,
		SourceUpdatedAt:    o.SourceUpdatedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := w.orders.Upsert(ctx, tx, model); err != nil {
		return domain.Written{}, fmt.Errorf("upsert order %s: %w", o.ExternalID, err)
	}

	keep := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		item := &orderdomain.LineItem{
			ID:                w.genID.Generate(),
			TenantID:          tenantID,
			OrderID:           model.ID,
			ExternalID:        li.ExternalID,
			ProductExternalID: li.ProductExternalID,
			VariantExternalID: li.VariantExternalID,
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          li.Quantity,
			Price:             li.Price,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := w.orders.UpsertLineItem(ctx, tx, item); err != nil {
			return domain.Written{}, fmt.Errorf("upsert line item %s: %w", li.ExternalID, err)
		}
		keep = append(keep, li.ExternalID)
	}
	if _, err := w.orders.PruneLineItems(ctx, tx, tenantID, model.ID, keep); err != nil {
		return domain.Written{}, fmt.Errorf("prune line items of order %s: %w", o.ExternalID, err)
	}

	return domain.Written{ID: model.ID, ExternalID: o.ExternalID, SourceUpdatedAt: o.SourceUpdatedAt}, nil
}
