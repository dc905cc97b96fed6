package enums

import "fmt"

// ProductionStatus tracks the seller-side fulfillment pipeline stage. The
// chain is strictly forward: new -> in_production -> qc -> ready -> shipped.
type ProductionStatus string

const (
	ProductionStatusNew          ProductionStatus = "new"
	ProductionStatusInProduction ProductionStatus = "in_production"
	ProductionStatusQC           ProductionStatus = "qc"
	ProductionStatusReady        ProductionStatus = "ready"
	ProductionStatusShipped      ProductionStatus = "shipped"
)

var productionChain = []ProductionStatus{
	ProductionStatusNew,
	ProductionStatusInProduction,
	ProductionStatusQC,
	ProductionStatusReady,
	ProductionStatusShipped,
}

// String implements fmt.Stringer.
func (p ProductionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductionStatus.
func (p ProductionStatus) IsValid() bool {
	for _, candidate := range productionChain {
		if candidate == p {
			return true
		}
	}
	return false
}

// Next returns the single legal successor stage, or false when the stage is
// terminal for the pipeline.
func (p ProductionStatus) Next() (ProductionStatus, bool) {
	for i, candidate := range productionChain {
		if candidate == p && i+1 < len(productionChain) {
			return productionChain[i+1], true
		}
	}
	return "", false
}

// ParseProductionStatus converts raw input into a ProductionStatus.
func ParseProductionStatus(value string) (ProductionStatus, error) {
	for _, candidate := range productionChain {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production status %q", value)
}
