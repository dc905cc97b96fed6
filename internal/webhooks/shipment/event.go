package shipmentwebhook

import (
	"fmt"
	"time"
)

const scanTimeLayout = "2006-01-02 15:04:05"

// Event is a carrier tracking notification. OrderID is the channel order id
// the shipment was booked with, which is our internal order uuid.
type Event struct {
	OrderID          string `json:"order_id"`
	AWB              string `json:"awb"`
	CourierName      string `json:"courier_name"`
	ShipmentID       int64  `json:"shipment_id"`
	CurrentStatus    string `json:"current_status"`
	CurrentTimestamp string `json:"current_timestamp"`
	ETD              string `json:"etd"`
}

// OccurredAt parses the carrier's scan timestamp, falling back to now. The
// carrier omits a timezone; scans are treated as UTC.
func (e *Event) OccurredAt() time.Time {
	if e.CurrentTimestamp != "" {
		if ts, err := time.Parse(scanTimeLayout, e.CurrentTimestamp); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// DedupKey synthesizes a stable event id; the carrier does not send one.
// Retries of the same scan collapse onto one webhook_events row.
func (e *Event) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", e.OrderID, e.AWB, e.CurrentStatus, e.CurrentTimestamp)
}
