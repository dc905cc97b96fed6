package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anvaya/commerce-backend/pkg/enums"
	"github.com/anvaya/commerce-backend/pkg/types"
)

// Order is the purchase aggregate root. Two independent machines live on it:
// PaymentStatus (payment/delivery lifecycle, advanced by webhooks and the
// return workflow) and ProductionStatus (seller pipeline, advanced by staff).
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber int64     `gorm:"column:order_number;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`

	Currency   string `gorm:"column:currency;type:text;not null;default:'INR'"`
	TotalPaise int64  `gorm:"column:total_paise;not null"`
	TaxPaise   int64  `gorm:"column:tax_paise;not null;default:0"`

	ShippingAddress types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  types.Address `gorm:"column:billing_address;type:jsonb;serializer:json"`

	PaymentStatus    enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ProductionStatus enums.ProductionStatus `gorm:"column:production_status;type:text;not null;default:'new'"`

	RazorpayOrderID   *string `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string `gorm:"column:razorpay_payment_id"`

	CourierName *string `gorm:"column:courier_name"`
	AWBCode     *string `gorm:"column:awb_code"`
	ShipmentID  *string `gorm:"column:shipment_id"`
	LabelURL    *string `gorm:"column:label_url"`

	// PaymentEventAt is the gateway timestamp of the last applied payment
	// event; older events are rejected as stale.
	PaymentEventAt *time.Time `gorm:"column:payment_event_at"`

	TargetShipDate      *time.Time `gorm:"column:target_ship_date"`
	ProductionStartedAt *time.Time `gorm:"column:production_started_at"`
	MaterialsAvailable  bool       `gorm:"column:materials_available;not null;default:false"`

	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Total returns the order total in rupees.
func (o *Order) Total() decimal.Decimal {
	return decimal.NewFromInt(o.TotalPaise).Div(decimal.NewFromInt(100))
}
