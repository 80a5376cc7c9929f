package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeApproverAssigned Type = "request.approver_assigned"
	TypeStepDecided      Type = "request.step_decided"
	TypeRequestCompleted Type = "request.completed"
	TypeRequestRejected  Type = "request.rejected"
	TypeRequestDeleted   Type = "request.deleted"
	TypeStatusChanged    Type = "request.status_changed"
)

// Payload keys shared by publishers and subscribers
const (
	KeyTitle       = "title"
	KeyRequesterID = "requester_id"
	KeyTemplateID  = "template_id"
	KeyNodeID      = "node_id"
	KeyNodeLabel   = "node_label"
	KeyApproverID  = "approver_id"
	KeyAssignees   = "assignees"
	KeyDecision    = "decision"
	KeyComment     = "comment"
	KeyStepIndex   = "step_index"
	KeyOldStatus   = "old_status"
	KeyNewStatus   = "new_status"
	KeyCurrentStep = "current_step"
	KeyTotalSteps  = "total_steps"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeApproverAssigned,
		TypeStepDecided,
		TypeRequestCompleted,
		TypeRequestRejected,
		TypeRequestDeleted,
		TypeStatusChanged:
		return true
	default:
		return false
	}
}
