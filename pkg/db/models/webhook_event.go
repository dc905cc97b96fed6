package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the durable dedup record for external notifications. The
// unique event_id makes replays a no-op even when the redis guard misses
// (restart, TTL expiry).
type WebhookEvent struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID   string     `gorm:"column:event_id;not null;uniqueIndex:uq_webhook_events_event_id"`
	Source    string     `gorm:"column:source;not null"`
	EventType string     `gorm:"column:event_type;not null"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`

	Payload map[string]any `gorm:"column:payload;type:jsonb;serializer:json"`

	// OccurredAt is the gateway-side timestamp, used as the ordering token.
	OccurredAt  time.Time `gorm:"column:occurred_at;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
