package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// Customer is the normalized form of a source customer record.
type Customer struct {
	ExternalID      string
	Email           *string
	FirstName       *string
	LastName        *string
	Phone           *string
	State           string
	Tags            string
	OrdersCount     int
	TotalSpent      decimal.Decimal
	Currency        string
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
	Raw             json.RawMessage
}

type Product struct {
	ExternalID string
	Title      string
	Handle     string
	// HandleDerived is set when the payload carried no handle and Handle was
	// slugged from the title.
	HandleDerived   bool
	Vendor          string
	ProductType     string
	Status          string
	Tags            string
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
	Variants        []Variant
	Raw             json.RawMessage
}

type Variant struct {
	ExternalID        string
	Title             string
	SKU               string
	Price             decimal.Decimal
	CompareAtPrice    decimal.NullDecimal
	InventoryQuantity int
	Position          int
	SourceCreatedAt   *time.Time
	SourceUpdatedAt   *time.Time
}

type Order struct {
	ExternalID         string
	Name               string
	OrderNumber        int
	Email              *string
	CustomerExternalID *string
	FinancialStatus    string
	FulfillmentStatus  string
	Currency           string
	TotalPrice         decimal.Decimal
	SubtotalPrice      decimal.Decimal
	TotalTax           decimal.Decimal
	TotalDiscounts     decimal.Decimal
	ProcessedAt        *time.Time
	CancelledAt        *time.Time
	SourceCreatedAt    *time.Time
	SourceUpdatedAt    *time.Time
	LineItems          []LineItem
	Raw                json.RawMessage
}

type LineItem struct {
	ExternalID        string
	ProductExternalID *string
	VariantExternalID *string
	Title             string
	SKU               string
	Quantity          int
	Price             decimal.Decimal
}

// Event is the normalized form of a checkout or cart webhook payload.
type Event struct {
	ID                 string
	Token              string
	CustomerExternalID *string
	Email              *string
	SourceCreatedAt    *time.Time
	SourceUpdatedAt    *time.Time
	Raw                json.RawMessage
}

type customerPayload struct {
	ID          json.Number `json:"id"`
	Email       *string     `json:"email"`
	FirstName   *string     `json:"first_name"`
	LastName    *string     `json:"last_name"`
	Phone       *string     `json:"phone"`
	State       string      `json:"state"`
	Tags        string      `json:"tags"`
	OrdersCount int         `json:"orders_count"`
	TotalSpent  *string     `json:"total_spent"`
	Currency    string      `json:"currency"`
	CreatedAt   *time.Time  `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at"`
}

type productPayload struct {
	ID          json.Number      `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Status      string           `json:"status"`
	Tags        string           `json:"tags"`
	CreatedAt   *time.Time       `json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at"`
	Variants    []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID                json.Number `json:"id"`
	Title             string      `json:"title"`
	SKU               *string     `json:"sku"`
	Price             *string     `json:"price"`
	CompareAtPrice    *string     `json:"compare_at_price"`
	InventoryQuantity int         `json:"inventory_quantity"`
	Position          int         `json:"position"`
	CreatedAt         *time.Time  `json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at"`
}

type orderPayload struct {
	ID                json.Number       `json:"id"`
	Name              string            `json:"name"`
	OrderNumber       int               `json:"order_number"`
	Email             *string           `json:"email"`
	FinancialStatus   *string           `json:"financial_status"`
	FulfillmentStatus *string           `json:"fulfillment_status"`
	Currency          string            `json:"currency"`
	TotalPrice        *string           `json:"total_price"`
	SubtotalPrice     *string           `json:"subtotal_price"`
	TotalTax          *string           `json:"total_tax"`
	TotalDiscounts    *string           `json:"total_discounts"`
	ProcessedAt       *time.Time        `json:"processed_at"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	CreatedAt         *time.Time        `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at"`
	Customer          *customerRef      `json:"customer"`
	LineItems         []lineItemPayload `json:"line_items"`
}

type customerRef struct {
	ID json.Number `json:"id"`
}

type lineItemPayload struct {
	ID        json.Number `json:"id"`
	ProductID json.Number `json:"product_id"`
	VariantID json.Number `json:"variant_id"`
	Title     string      `json:"title"`
	SKU       *string     `json:"sku"`
	Quantity  int         `json:"quantity"`
	Price     *string     `json:"price"`
}

type eventPayload struct {
	ID         json.Number  `json:"id"`
	Token      string       `json:"token"`
	CartToken  string       `json:"cart_token"`
	Email      *string      `json:"email"`
	CustomerID json.Number  `json:"customer_id"`
	Customer   *customerRef `json:"customer"`
	CreatedAt  *time.Time   `json:"created_at"`
	UpdatedAt  *time.Time   `json:"updated_at"`
}

func DecodeCustomer(raw json.RawMessage) (Customer, error) {
	if err := validate("customer.json", raw); err != nil {
		return Customer{}, err
	}
	var p customerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Customer{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	externalID, err := requireID(p.ID)
	if err != nil {
		return Customer{}, err
	}
	totalSpent, err := parseOptionalDecimal("total_spent", p.TotalSpent)
	if err != nil {
		return Customer{}, err
	}
	return Customer{
		ExternalID:      externalID,
		Email:           trimmedPtr(p.Email),
		FirstName:       trimmedPtr(p.FirstName),
		LastName:        trimmedPtr(p.LastName),
		Phone:           trimmedPtr(p.Phone),
		State:           p.State,
		Tags:            p.Tags,
		OrdersCount:     p.OrdersCount,
		TotalSpent:      totalSpent,
		Currency:        p.Currency,
		SourceCreatedAt: utcPtr(p.CreatedAt),
		SourceUpdatedAt: utcPtr(p.UpdatedAt),
		Raw:             raw,
	}, nil
}

func DecodeProduct(raw json.RawMessage) (Product, error) {
	if err := validate("product.json", raw); err != nil {
		return Product{}, err
	}
	var p productPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	externalID, err := requireID(p.ID)
	if err != nil {
		return Product{}, err
	}

	handle := strings.TrimSpace(p.Handle)
	derived := handle == ""
	if derived {
		handle = slug.Make(p.Title)
	}

	product := Product{
		ExternalID:      externalID,
		Title:           p.Title,
		Handle:          handle,
		HandleDerived:   derived,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Status:          p.Status,
		Tags:            p.Tags,
		SourceCreatedAt: utcPtr(p.CreatedAt),
		SourceUpdatedAt: utcPtr(p.UpdatedAt),
		Raw:             raw,
	}
	for _, v := range p.Variants {
		variantID, err := requireID(v.ID)
		if err != nil {
			return Product{}, err
		}
		price, err := parseDecimal("variant.price", v.Price)
		if err != nil {
			return Product{}, err
		}
		compareAt, err := parseNullDecimal("variant.compare_at_price", v.CompareAtPrice)
		if err != nil {
			return Product{}, err
		}
		product.Variants = append(product.Variants, Variant{
			ExternalID:        variantID,
			Title:             v.Title,
			SKU:               deref(v.SKU),
			Price:             price,
			CompareAtPrice:    compareAt,
			InventoryQuantity: v.InventoryQuantity,
			Position:          v.Position,
			SourceCreatedAt:   utcPtr(v.CreatedAt),
			SourceUpdatedAt:   utcPtr(v.UpdatedAt),
		})
	}
	return product, nil
}

func DecodeOrder(raw json.RawMessage) (Order, error) {
	if err := validate("order.json", raw); err != nil {
		return Order{}, err
	}
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	externalID, err := requireID(p.ID)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ExternalID:        externalID,
		Name:              p.Name,
		OrderNumber:       p.OrderNumber,
		Email:             trimmedPtr(p.Email),
		FinancialStatus:   deref(p.FinancialStatus),
		FulfillmentStatus: deref(p.FulfillmentStatus),
		Currency:          p.Currency,
		ProcessedAt:       utcPtr(p.ProcessedAt),
		CancelledAt:       utcPtr(p.CancelledAt),
		SourceCreatedAt:   utcPtr(p.CreatedAt),
		SourceUpdatedAt:   utcPtr(p.UpdatedAt),
		Raw:               raw,
	}
	if p.Customer != nil {
		order.CustomerExternalID = optionalID(p.Customer.ID)
	}

	if order.TotalPrice, err = parseDecimal("total_price", p.TotalPrice); err != nil {
		return Order{}, err
	}
	// Absent aggregates are reported by the source as nothing owed.
	amounts := []struct {
		field string
		value *string
		dst   *decimal.Decimal
	}{
		{"subtotal_price", p.SubtotalPrice, &order.SubtotalPrice},
		{"total_tax", p.TotalTax, &order.TotalTax},
		{"total_discounts", p.TotalDiscounts, &order.TotalDiscounts},
	}
	for _, amount := range amounts {
		parsed, err := parseOptionalDecimal(amount.field, amount.value)
		if err != nil {
			return Order{}, err
		}
		*amount.dst = parsed
	}

	for _, li := range p.LineItems {
		lineID, err := requireID(li.ID)
		if err != nil {
			return Order{}, err
		}
		price, err := parseDecimal("line_item.price", li.Price)
		if err != nil {
			return Order{}, err
		}
		order.LineItems = append(order.LineItems, LineItem{
			ExternalID:        lineID,
			ProductExternalID: optionalID(li.ProductID),
			VariantExternalID: optionalID(li.VariantID),
			Title:             li.Title,
			SKU:               deref(li.SKU),
			Quantity:          li.Quantity,
			Price:             price,
		})
	}
	return order, nil
}

// DecodeEvent reads a checkout or cart payload. Either id or token must be present.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	if err := validate("event.json", raw); err != nil {
		return Event{}, err
	}
	var p eventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	token := strings.TrimSpace(p.Token)
	if token == "" {
		token = strings.TrimSpace(p.CartToken)
	}
	event := Event{
		ID:              strings.TrimSpace(p.ID.String()),
		Token:           token,
		Email:           trimmedPtr(p.Email),
		SourceCreatedAt: utcPtr(p.CreatedAt),
		SourceUpdatedAt: utcPtr(p.UpdatedAt),
		Raw:             raw,
	}
	if event.ID == "" && event.Token == "" {
		return Event{}, fmt.Errorf("%w: id or token is required", ErrInvalidRecord)
	}
	if p.Customer != nil {
		event.CustomerExternalID = optionalID(p.Customer.ID)
	}
	if event.CustomerExternalID == nil {
		event.CustomerExternalID = optionalID(p.CustomerID)
	}
	return event, nil
}

func requireID(id json.Number) (string, error) {
	value := strings.TrimSpace(id.String())
	if value == "" || value == "0" {
		return "", fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	return value, nil
}

func optionalID(id json.Number) *string {
	value := strings.TrimSpace(id.String())
	if value == "" || value == "0" {
		return nil
	}
	return &value
}

// parseDecimal reads a required amount. A missing or blank value is an
// invalid record, never zero.
func parseDecimal(field string, value *string) (decimal.Decimal, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is required", ErrInvalidRecord, field)
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(*value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s=%q", ErrInvalidDecimal, field, *value)
	}
	return parsed, nil
}

func parseOptionalDecimal(field string, value *string) (decimal.Decimal, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(field, value)
}

func parseNullDecimal(field string, value *string) (decimal.NullDecimal, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return decimal.NullDecimal{}, nil
	}
	parsed, err := parseDecimal(field, value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(parsed), nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
