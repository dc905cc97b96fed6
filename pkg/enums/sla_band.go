package enums

// SLABand classifies how much time remains before an order's target ship
// date. Purely informs staff prioritization; there is no automated
// escalation.
type SLABand string

const (
	SLABandBreached SLABand = "breached"
	SLABandUrgent   SLABand = "urgent"
	SLABandWarning  SLABand = "warning"
	SLABandOnTrack  SLABand = "on_track"
)

// String implements fmt.Stringer.
func (s SLABand) String() string {
	return string(s)
}
