package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/pkg/types"
)

// CreateOrderItemInput is one cart line at checkout. The unit price is the
// caller-supplied snapshot; it is stored denormalized and never recomputed.
type CreateOrderItemInput struct {
	ProductID      uuid.UUID
	Name           string
	Qty            int
	UnitPricePaise int64
}

// CreateOrderInput carries everything Order Intake needs to create the
// aggregate in one transaction.
type CreateOrderInput struct {
	UserID          uuid.UUID
	TotalPaise      int64
	TaxPaise        int64
	ShippingAddress types.Address
	BillingAddress  types.Address
	GatewayOrderID  *string
	TargetShipDate  *time.Time
	Items           []CreateOrderItemInput
}
