package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Receipt marks a delivery as handled. The unique key is the only
// duplicate signal.
type Receipt struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;uniqueIndex:ux_webhook_receipts_tenant_topic_event,priority:1" json:"tenant_id"`
	Topic      string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_webhook_receipts_tenant_topic_event,priority:2" json:"topic"`
	EventID    string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_receipts_tenant_topic_event,priority:3" json:"event_id"`
	ReceivedAt time.Time    `gorm:"not null" json:"received_at"`
}

func (Receipt) TableName() string { return "webhook_receipts" }

type EventType string

const (
	EventCartAbandoned   EventType = "cart_abandoned"
	EventCheckoutStarted EventType = "checkout_started"
)

type CustomEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID   `gorm:"not null;index:ix_custom_events_tenant_type,priority:1" json:"tenant_id"`
	CustomerID  *snowflake.ID  `gorm:"index" json:"customer_id,omitempty"`
	EventType   EventType      `gorm:"type:varchar(32);not null;index:ix_custom_events_tenant_type,priority:2" json:"event_type"`
	ExternalRef string         `gorm:"type:varchar(255)" json:"external_ref"`
	Payload     datatypes.JSON `json:"payload"`
	OccurredAt  time.Time      `gorm:"not null" json:"occurred_at"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (CustomEvent) TableName() string { return "custom_events" }
