package fulfillment

import (
	"math"
	"time"

	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
)

// SLA classifies an order against its target ship date. PercentElapsed is how
// much of the window from production start to target has been used, clamped
// to [0, 100]; it is zero when either date is missing.
type SLA struct {
	Band           enums.SLABand `json:"band"`
	TargetShipDate *time.Time    `json:"target_ship_date,omitempty"`
	Remaining      time.Duration `json:"-"`
	PercentElapsed float64       `json:"percent_elapsed"`
}

// Bander computes SLA bands from the configured urgency windows.
type Bander struct {
	urgentWindow  time.Duration
	warningWindow time.Duration
}

func NewBander(urgentWindow, warningWindow time.Duration) *Bander {
	return &Bander{urgentWindow: urgentWindow, warningWindow: warningWindow}
}

// Classify bands the order by time remaining to its target ship date. An
// order with no target is always on track.
func (b *Bander) Classify(order *models.Order, now time.Time) SLA {
	if order.TargetShipDate == nil {
		return SLA{Band: enums.SLABandOnTrack}
	}

	remaining := order.TargetShipDate.Sub(now)
	sla := SLA{
		TargetShipDate: order.TargetShipDate,
		Remaining:      remaining,
		PercentElapsed: percentElapsed(order, now),
	}

	switch {
	case remaining < 0:
		sla.Band = enums.SLABandBreached
	case remaining < b.urgentWindow:
		sla.Band = enums.SLABandUrgent
	case remaining < b.warningWindow:
		sla.Band = enums.SLABandWarning
	default:
		sla.Band = enums.SLABandOnTrack
	}
	return sla
}

func percentElapsed(order *models.Order, now time.Time) float64 {
	if order.ProductionStartedAt == nil || order.TargetShipDate == nil {
		return 0
	}
	window := order.TargetShipDate.Sub(*order.ProductionStartedAt)
	if window <= 0 {
		return 100
	}
	elapsed := now.Sub(*order.ProductionStartedAt)
	pct := float64(elapsed) / float64(window) * 100
	return math.Min(100, math.Max(0, pct))
}
