package entity

import "time"

// FlowInstance is the execution pointer of one request through its template
type FlowInstance struct {
	ID            int64       `json:"id"`
	TemplateID    int64       `json:"template_id"`
	RequestID     int64       `json:"request_id"`
	CurrentNodeID string      `json:"current_node_id"`
	Status        string      `json:"status"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	History       []*FlowStep `json:"history,omitempty"`
}

// IsTerminal reports whether the instance accepts no further decisions
func (i *FlowInstance) IsTerminal() bool {
	return i.Status == InstanceStatusCompleted || i.Status == InstanceStatusRejected
}

// Clone copies the instance without its history
func (i *FlowInstance) Clone() *FlowInstance {
	c := *i
	c.History = nil
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
