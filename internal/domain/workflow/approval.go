package workflow

// approvalRules is the lifecycle of an approval instance.
//
//	pending ──SUBMIT──▶ in-progress ──APPROVE[!final]──▶ in-progress
//	                         │ └──────APPROVE[final]───▶ completed
//	                         └────────REJECT───────────▶ rejected
var approvalRules = NewRules().
	Permit(StatePending, TriggerSubmit, StateInProgress).
	PermitIf(StateInProgress, TriggerApprove, StateCompleted, Final).
	PermitIf(StateInProgress, TriggerApprove, StateInProgress, NotFinal).
	Permit(StateInProgress, TriggerReject, StateRejected)

// NewApprovalMachine returns a machine positioned at the given instance status.
// Terminal states have no outgoing transitions.
func NewApprovalMachine(current State) *Machine {
	return approvalRules.Machine(current)
}
