package source

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCustomer(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 207119551,
		"email": " bob@example.com ",
		"first_name": "Bob",
		"last_name": null,
		"state": "enabled",
		"orders_count": 2,
		"total_spent": "199.65",
		"currency": "USD",
		"created_at": "2024-01-02T10:00:00-05:00",
		"updated_at": "2024-01-03T10:00:00-05:00"
	}`)

	c, err := DecodeCustomer(raw)
	require.NoError(t, err)
	assert.Equal(t, "207119551", c.ExternalID)
	require.NotNil(t, c.Email)
	assert.Equal(t, "bob@example.com", *c.Email)
	assert.Nil(t, c.LastName)
	assert.Equal(t, "199.65", c.TotalSpent.StringFixed(2))
	require.NotNil(t, c.SourceUpdatedAt)
	assert.Equal(t, time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), *c.SourceUpdatedAt)
	assert.Equal(t, time.UTC, c.SourceUpdatedAt.Location())
}

func TestDecodeCustomerMissingRequiredField(t *testing.T) {
	_, err := DecodeCustomer(json.RawMessage(`{"id": 1}`))
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = DecodeCustomer(json.RawMessage(`{"updated_at": "2024-01-03T10:00:00Z"}`))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestDecodeProductVariantsAndHandleFallback(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 632910392,
		"title": "IPod Nano 8GB",
		"handle": "",
		"updated_at": "2024-02-01T00:00:00Z",
		"variants": [
			{"id": 808950810, "title": "Pink", "sku": "IPOD2008PINK", "price": "199.00", "compare_at_price": null, "position": 1},
			{"id": 49148385, "title": "Red", "price": "199.00", "compare_at_price": "249.00", "position": 2}
		]
	}`)

	p, err := DecodeProduct(raw)
	require.NoError(t, err)
	assert.Equal(t, "ipod-nano-8gb", p.Handle)
	assert.True(t, p.HandleDerived)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "808950810", p.Variants[0].ExternalID)
	assert.False(t, p.Variants[0].CompareAtPrice.Valid)
	assert.True(t, p.Variants[1].CompareAtPrice.Valid)
	assert.Equal(t, "249", p.Variants[1].CompareAtPrice.Decimal.String())
	assert.Equal(t, "", p.Variants[1].SKU)
}

func TestDecodeProductInvalidPrice(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 1, "title": "x", "updated_at": "2024-02-01T00:00:00Z",
		"variants": [{"id": 2, "price": "12,50"}]
	}`)
	_, err := DecodeProduct(raw)
	assert.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestDecodeProductRequiresVariantPrice(t *testing.T) {
	for name, variant := range map[string]string{
		"missing": `{"id": 2}`,
		"null":    `{"id": 2, "price": null}`,
		"blank":   `{"id": 2, "price": ""}`,
	} {
		t.Run(name, func(t *testing.T) {
			raw := json.RawMessage(`{"id": 1, "title": "x", "updated_at": "2024-02-01T00:00:00Z", "variants": [` + variant + `]}`)
			_, err := DecodeProduct(raw)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestDecodeOrder(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 450789469,
		"name": "#1001",
		"order_number": 1001,
		"financial_status": "paid",
		"fulfillment_status": null,
		"currency": "USD",
		"total_price": "598.94",
		"subtotal_price": "597.00",
		"total_tax": "11.94",
		"total_discounts": "10.00",
		"updated_at": "2024-02-01T00:00:00Z",
		"customer": {"id": 207119551},
		"line_items": [
			{"id": 466157049, "product_id": 632910392, "variant_id": 39072856, "title": "IPod", "quantity": 1, "price": "199.00"},
			{"id": 518995019, "product_id": null, "variant_id": null, "title": "Custom", "quantity": 2, "price": "199.00"}
		]
	}`)

	o, err := DecodeOrder(raw)
	require.NoError(t, err)
	assert.Equal(t, "450789469", o.ExternalID)
	assert.Equal(t, "paid", o.FinancialStatus)
	assert.Equal(t, "", o.FulfillmentStatus)
	assert.Equal(t, "598.94", o.TotalPrice.StringFixed(2))
	require.NotNil(t, o.CustomerExternalID)
	assert.Equal(t, "207119551", *o.CustomerExternalID)
	require.Len(t, o.LineItems, 2)
	require.NotNil(t, o.LineItems[0].VariantExternalID)
	assert.Equal(t, "39072856", *o.LineItems[0].VariantExternalID)
	assert.Nil(t, o.LineItems[1].ProductExternalID)
}

func TestDecodeOrderWithoutCustomer(t *testing.T) {
	o, err := DecodeOrder(json.RawMessage(`{"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": "0.00", "customer": null}`))
	require.NoError(t, err)
	assert.Nil(t, o.CustomerExternalID)
	assert.True(t, o.TotalPrice.IsZero())
}

func TestDecodeOrderRequiresAmounts(t *testing.T) {
	cases := map[string]string{
		"missing total":      `{"id": 5, "updated_at": "2024-02-01T00:00:00Z"}`,
		"null total":         `{"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": null}`,
		"blank total":        `{"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": " "}`,
		"missing line price": `{"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": "1.00", "line_items": [{"id": 6, "quantity": 1}]}`,
		"null line price":    `{"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": "1.00", "line_items": [{"id": 6, "price": null}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeOrder(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestDecodeOrderOptionalAmountsDefaultToZero(t *testing.T) {
	o, err := DecodeOrder(json.RawMessage(`{
		"id": 5, "updated_at": "2024-02-01T00:00:00Z", "total_price": "12.50",
		"subtotal_price": null,
		"line_items": [{"id": 6, "price": "12.50", "quantity": 1}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "12.5", o.TotalPrice.String())
	assert.True(t, o.SubtotalPrice.IsZero())
	assert.True(t, o.TotalTax.IsZero())
	assert.True(t, o.TotalDiscounts.IsZero())
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, "12.5", o.LineItems[0].Price.String())
}

func TestDecodeCustomerWithoutTotalSpent(t *testing.T) {
	c, err := DecodeCustomer(json.RawMessage(`{"id": 9, "updated_at": "2024-02-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.True(t, c.TotalSpent.IsZero())
}

func TestDecodeEvent(t *testing.T) {
	cart, err := DecodeEvent(json.RawMessage(`{"token": "c1-abc", "customer_id": 207119551}`))
	require.NoError(t, err)
	assert.Equal(t, "c1-abc", cart.Token)
	assert.Equal(t, "", cart.ID)
	require.NotNil(t, cart.CustomerExternalID)
	assert.Equal(t, "207119551", *cart.CustomerExternalID)

	checkout, err := DecodeEvent(json.RawMessage(`{"id": 981820079, "token": "t", "email": "a@b.co", "customer": {"id": 9}}`))
	require.NoError(t, err)
	assert.Equal(t, "981820079", checkout.ID)
	require.NotNil(t, checkout.CustomerExternalID)
	assert.Equal(t, "9", *checkout.CustomerExternalID)

	_, err = DecodeEvent(json.RawMessage(`{"email": "a@b.co"}`))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
