package shipmentwebhook

import (
	"strings"

	"github.com/anvaya/commerce-backend/pkg/enums"
)

// statusMapping translates a carrier scan status into the order's
// payment/delivery status. Carrier vocabularies drift, so anything not in the
// allow-list merges tracking metadata only and never touches order state.
var statusMapping = map[string]enums.PaymentStatus{
	"DELIVERED":        enums.PaymentStatusDelivered,
	"MANIFESTED":       enums.PaymentStatusShipped,
	"PICKUP SCHEDULED": enums.PaymentStatusShipped,
	"PICKED UP":        enums.PaymentStatusShipped,
	"SHIPPED":          enums.PaymentStatusShipped,
	"IN TRANSIT":       enums.PaymentStatusShipped,
	"OUT FOR DELIVERY": enums.PaymentStatusShipped,
	"CANCELLED":        enums.PaymentStatusCancelled,
	"RTO INITIATED":    enums.PaymentStatusCancelled,
}

// allowedFrom lists the source statuses a carrier-driven transition may leave
// from. A delivered order cannot be pulled back to shipped by a late transit
// scan, and a return in flight is never clobbered by the carrier.
var allowedFrom = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusShipped:   {enums.PaymentStatusPaid},
	enums.PaymentStatusDelivered: {enums.PaymentStatusPaid, enums.PaymentStatusShipped},
	enums.PaymentStatusCancelled: {enums.PaymentStatusPaid, enums.PaymentStatusShipped},
}

// MapCarrierStatus returns the order status a carrier scan maps to, or false
// when the scan is metadata-only.
func MapCarrierStatus(raw string) (enums.PaymentStatus, bool) {
	target, ok := statusMapping[strings.ToUpper(strings.TrimSpace(raw))]
	return target, ok
}
