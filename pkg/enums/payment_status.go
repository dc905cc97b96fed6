package enums

import "fmt"

// PaymentStatus tracks the payment/delivery lifecycle of an order. It is one
// of three independent machines on the order aggregate; the production
// pipeline and the return workflow carry their own status types.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "pending"
	PaymentStatusPaid            PaymentStatus = "paid"
	PaymentStatusShipped         PaymentStatus = "shipped"
	PaymentStatusDelivered       PaymentStatus = "delivered"
	PaymentStatusCancelled       PaymentStatus = "cancelled"
	PaymentStatusReturnRequested PaymentStatus = "return_requested"
	PaymentStatusReturnApproved  PaymentStatus = "return_approved"
	PaymentStatusRefundInitiated PaymentStatus = "refund_initiated"
	PaymentStatusRefunded        PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusShipped,
	PaymentStatusDelivered,
	PaymentStatusCancelled,
	PaymentStatusReturnRequested,
	PaymentStatusReturnApproved,
	PaymentStatusRefundInitiated,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further payment/delivery transition is legal.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusCancelled || p == PaymentStatusRefunded
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
