package domain

import (
	"context"
	"errors"
	"strings"
)

const (
	TopicCustomersCreate = "customers/create"
	TopicCustomersUpdate = "customers/update"
	TopicProductsCreate  = "products/create"
	TopicProductsUpdate  = "products/update"
	TopicOrdersCreate    = "orders/create"
	TopicOrdersUpdated   = "orders/updated"
	TopicCheckoutsCreate = "checkouts/create"
	TopicCartsAbandoned  = "carts/abandoned"
)

const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
	HeaderTopic      = "X-Shopify-Topic"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
)

type Request struct {
	ShopDomain string
	Topic      string
	EventID    string
	Payload    []byte
	Signature  string
}

type Service interface {
	Receive(ctx context.Context, req Request) (Outcome, error)
}

// NormalizeTopic lowercases and trims slashes, so "/orders/updated" and
// "Orders/Updated" name the same topic.
func NormalizeTopic(topic string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(topic)), "/")
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrUnsupportedTopic = errors.New("unsupported_topic")
	ErrMissingEventID   = errors.New("missing_event_id")
)
