package enums

// StatusMachine tags which of the order's state machines a history ledger
// entry belongs to.
type StatusMachine string

const (
	MachinePayment    StatusMachine = "payment"
	MachineProduction StatusMachine = "production"
	MachineReturn     StatusMachine = "return"
)

// String implements fmt.Stringer.
func (m StatusMachine) String() string {
	return string(m)
}
