package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/pkg/enums"
)

// OrderStatusHistory is an append-only ledger entry: one row per observed
// transition on one of the order's machines. Rows are never updated or
// deleted; the repository intentionally exposes no mutation beyond append.
type OrderStatusHistory struct {
	ID      uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	Machine enums.StatusMachine `gorm:"column:machine;type:text;not null"`
	Status  string              `gorm:"column:status;not null"`
	Actor   string              `gorm:"column:actor;not null"`
	Note    *string             `gorm:"column:note"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
