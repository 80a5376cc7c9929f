package entity

import "time"

// ApprovalRequest is the user-facing record a flow instance is attached to.
// Status and CurrentStep are projected from the instance; TotalSteps is
// fixed when the request is created.
type ApprovalRequest struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	RequesterID    string     `json:"requester_id"`
	TemplateID     int64      `json:"template_id"`
	FlowInstanceID int64      `json:"flow_instance_id"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Category       string     `json:"category"`
	CurrentStep    int        `json:"current_step"`
	TotalSteps     int        `json:"total_steps"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Attachments    []string   `json:"attachments"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsOverdue reports whether the request is still open past its due date
func (r *ApprovalRequest) IsOverdue(now time.Time) bool {
	if r.DueDate == nil {
		return false
	}
	open := r.Status == RequestStatusPending || r.Status == RequestStatusInProgress
	return open && now.After(*r.DueDate)
}

func (r *ApprovalRequest) Clone() *ApprovalRequest {
	c := *r
	c.Attachments = append([]string(nil), r.Attachments...)
	if r.DueDate != nil {
		d := *r.DueDate
		c.DueDate = &d
	}
	return &c
}
