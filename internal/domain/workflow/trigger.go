package workflow

// Trigger is an event that moves an instance between states
type Trigger string

const (
	// TriggerSubmit moves a freshly created instance onto its first approver
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

func (t Trigger) String() string {
	return string(t)
}
