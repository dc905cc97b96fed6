package models

import (
	"time"

	"github.com/google/uuid"
)

// ReturnItem references one order item within a return request. Qty must not
// exceed the original purchase quantity.
type ReturnItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnRequestID uuid.UUID `gorm:"column:return_request_id;type:uuid;not null"`
	OrderItemID     uuid.UUID `gorm:"column:order_item_id;type:uuid;not null"`
	Qty             int       `gorm:"column:qty;not null"`
	Reason          *string   `gorm:"column:reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
