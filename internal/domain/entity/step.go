package entity

import "time"

// FlowStep is one ledger entry: a decision, or a pending placeholder, at a node.
// StepIndex 0 is the requester's submission; later indexes follow approver order.
type FlowStep struct {
	ID         int64      `json:"id"`
	InstanceID int64      `json:"instance_id"`
	NodeID     string     `json:"node_id"`
	ApproverID string     `json:"approver_id"`
	Assignees  []string   `json:"assignees,omitempty"`
	Decision   string     `json:"decision"`
	Comment    string     `json:"comment,omitempty"`
	StepIndex  int        `json:"step"`
	DecisionAt *time.Time `json:"decision_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsDecided reports whether the step carries a final decision
func (s *FlowStep) IsDecided() bool {
	return s.Decision == DecisionApproved || s.Decision == DecisionRejected
}

// CanBeDecidedBy reports whether approverID may record the decision.
// An empty assignee list leaves the step open to any approver.
func (s *FlowStep) CanBeDecidedBy(approverID string) bool {
	if len(s.Assignees) == 0 {
		return true
	}
	for _, a := range s.Assignees {
		if a == approverID {
			return true
		}
	}
	return false
}

func (s *FlowStep) Clone() *FlowStep {
	c := *s
	c.Assignees = append([]string(nil), s.Assignees...)
	if s.DecisionAt != nil {
		t := *s.DecisionAt
		c.DecisionAt = &t
	}
	return &c
}
