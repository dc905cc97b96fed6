package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anvaya/commerce-backend/pkg/enums"
)

// ReturnRequest is the secondary aggregate for the return/refund workflow.
// At most one non-terminal request may exist per order (enforced by a
// partial unique index).
type ReturnRequest struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null"`

	Reason string `gorm:"column:reason;not null"`

	// RefundAmountPaise snapshots the order total at request time; it is not
	// recomputed later even if items change.
	RefundAmountPaise int64 `gorm:"column:refund_amount_paise;not null"`

	Status     enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	AdminNotes *string            `gorm:"column:admin_notes"`

	PickupScheduledAt *time.Time `gorm:"column:pickup_scheduled_at"`

	Items []ReturnItem `gorm:"foreignKey:ReturnRequestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RefundAmount returns the snapshot refund amount in rupees.
func (r *ReturnRequest) RefundAmount() decimal.Decimal {
	return decimal.NewFromInt(r.RefundAmountPaise).Div(decimal.NewFromInt(100))
}
