package paymentwebhook

import (
	"strings"
	"time"
)

// Gateway event types this receiver understands. Anything else is accepted
// and ignored so the gateway stops retrying.
const (
	EventPaymentCaptured   = "payment.captured"
	EventOrderPaid         = "order.paid"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
	EventRefundProcessed   = "refund.processed"
)

// Event is the parsed gateway notification. EventID comes from the
// X-Razorpay-Event-Id header, not the body.
type Event struct {
	EventID   string  `json:"-"`
	Type      string  `json:"event"`
	CreatedAt int64   `json:"created_at"`
	Payload   Payload `json:"payload"`
}

type Payload struct {
	Payment EntityWrapper `json:"payment"`
	Order   EntityWrapper `json:"order"`
	Refund  EntityWrapper `json:"refund"`
}

type EntityWrapper struct {
	Entity *Entity `json:"entity"`
}

// Entity is the union of the payment/order/refund entity fields the receiver
// reads. Notes carry caller-supplied metadata, including our order id.
type Entity struct {
	ID        string            `json:"id"`
	OrderID   string            `json:"order_id"`
	PaymentID string            `json:"payment_id"`
	Notes     map[string]string `json:"notes"`
}

// OccurredAt converts the gateway's unix timestamp into the ordering token.
// A zero created_at falls back to now so a missing field never blocks
// application (it just cannot reject staleness).
func (e *Event) OccurredAt() time.Time {
	if e.CreatedAt <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(e.CreatedAt, 0).UTC()
}

// PrimaryEntity returns whichever entity the event type populated.
func (e *Event) PrimaryEntity() *Entity {
	switch {
	case e.Payload.Payment.Entity != nil:
		return e.Payload.Payment.Entity
	case e.Payload.Refund.Entity != nil:
		return e.Payload.Refund.Entity
	case e.Payload.Order.Entity != nil:
		return e.Payload.Order.Entity
	default:
		return nil
	}
}

// MetadataOrderID returns the internal order id carried in the entity notes.
func (e *Event) MetadataOrderID() string {
	entity := e.PrimaryEntity()
	if entity == nil {
		return ""
	}
	return strings.TrimSpace(entity.Notes["order_id"])
}
